package commands

import (
	"fmt"
	"strconv"
	"time"

	zwave "github.com/cpchain-network/gozwave"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Manage the rotating value-poll list",
}

var pollEnableCmd = &cobra.Command{
	Use:   "enable <node> <command-class> <index>",
	Short: "Add a value to the poll rotation",
	Args:  cobra.ExactArgs(3),
	RunE:  runPollEnable,
}

var pollDisableCmd = &cobra.Command{
	Use:   "disable <node> <command-class> <index>",
	Short: "Remove a value from the poll rotation",
	Args:  cobra.ExactArgs(3),
	RunE:  runPollDisable,
}

func init() {
	pollCmd.AddCommand(pollEnableCmd)
	pollCmd.AddCommand(pollDisableCmd)
}

func parseValueID(args []string) (zwave.ValueID, error) {
	node, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return zwave.ValueID{}, fmt.Errorf("parse node id: %w", err)
	}
	cc, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return zwave.ValueID{}, fmt.Errorf("parse command class: %w", err)
	}
	index, err := strconv.ParseUint(args[2], 10, 8)
	if err != nil {
		return zwave.ValueID{}, fmt.Errorf("parse index: %w", err)
	}
	return zwave.ValueID{NodeID: byte(node), CommandClass: byte(cc), Instance: 1, Index: byte(index)}, nil
}

func runPollEnable(cmd *cobra.Command, args []string) error {
	id, err := parseValueID(args)
	if err != nil {
		return err
	}
	driver, err := openDriver(30 * time.Second)
	if err != nil {
		return err
	}
	defer driver.Close()
	driver.Poll().Enable(id, zwave.PollNormal)
	fmt.Printf("polling enabled for %s\n", id)
	return nil
}

func runPollDisable(cmd *cobra.Command, args []string) error {
	id, err := parseValueID(args)
	if err != nil {
		return err
	}
	driver, err := openDriver(30 * time.Second)
	if err != nil {
		return err
	}
	defer driver.Close()
	driver.Poll().Enable(id, zwave.PollNone)
	fmt.Printf("polling disabled for %s\n", id)
	return nil
}
