package commands

import (
	"fmt"
	"time"

	zwave "github.com/cpchain-network/gozwave"
	"github.com/spf13/cobra"
)

var controllerNode uint8

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run controller-administration commands",
}

var addDeviceCmd = &cobra.Command{
	Use:   "add-device",
	Short: "Put the controller into add-device mode and wait for completion",
	RunE:  runControllerCommand(zwave.ControllerCommandAddDevice),
}

var removeDeviceCmd = &cobra.Command{
	Use:   "remove-device",
	Short: "Put the controller into remove-device mode and wait for completion",
	RunE:  runControllerCommand(zwave.ControllerCommandRemoveDevice),
}

var requestNetworkUpdateCmd = &cobra.Command{
	Use:   "request-network-update",
	Short: "Request a network topology update from the SUC",
	RunE:  runControllerCommand(zwave.ControllerCommandRequestNetworkUpdate),
}

var hasNodeFailedCmd = &cobra.Command{
	Use:   "has-node-failed",
	Short: "Ask the controller whether --node is on its failed-node list",
	RunE:  runControllerCommand(zwave.ControllerCommandHasNodeFailed),
}

var removeFailedNodeCmd = &cobra.Command{
	Use:   "remove-failed-node",
	Short: "Remove --node from the network without its cooperation",
	RunE:  runControllerCommand(zwave.ControllerCommandRemoveFailedNode),
}

var neighborUpdateCmd = &cobra.Command{
	Use:   "neighbor-update",
	Short: "Ask --node to rediscover its RF neighbors",
	RunE:  runControllerCommand(zwave.ControllerCommandRequestNodeNeighborUpdate),
}

func init() {
	controllerCmd.PersistentFlags().Uint8Var(&controllerNode, "node", 0, "target node id")
	controllerCmd.AddCommand(addDeviceCmd)
	controllerCmd.AddCommand(removeDeviceCmd)
	controllerCmd.AddCommand(requestNetworkUpdateCmd)
	controllerCmd.AddCommand(hasNodeFailedCmd)
	controllerCmd.AddCommand(removeFailedNodeCmd)
	controllerCmd.AddCommand(neighborUpdateCmd)
}

func runControllerCommand(cmd zwave.ControllerCommand) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		driver, err := openDriver(30 * time.Second)
		if err != nil {
			return err
		}
		defer driver.Close()

		type outcome struct {
			state zwave.ControllerState
			err   error
		}
		done := make(chan outcome, 1)
		id, err := driver.BeginControllerCommand(cmd, func(_ zwave.ControllerCommand, state zwave.ControllerState, cmdErr error) {
			done <- outcome{state: state, err: cmdErr}
		}, zwave.ControllerCommandArgs{NodeID: controllerNode})
		if err != nil {
			return err
		}
		fmt.Printf("started %s (id=%s)\n", cmd, id)

		select {
		case o := <-done:
			switch o.state {
			case zwave.ControllerStateCompleted, zwave.ControllerStateNodeOK, zwave.ControllerStateNodeFailed:
				fmt.Printf("ok (state=%s)\n", o.state)
				return nil
			default:
				return fmt.Errorf("controller command ended in state %s: %v", o.state, o.err)
			}
		case <-time.After(2 * time.Minute):
			return driver.CancelControllerCommand()
		}
	}
}
