package commands

import (
	"fmt"
	"time"

	zwave "github.com/cpchain-network/gozwave"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes in the controller's node table",
	RunE:  runNodes,
}

func runNodes(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(30 * time.Second)
	if err != nil {
		return err
	}
	defer driver.Close()

	fmt.Printf("%-6s %-10s %-8s %-7s %-7s %-10s\n", "NODE", "STAGE", "AWAKE", "BASIC", "GENERIC", "MFR")
	driver.Nodes().Range(func(n *zwave.Node) {
		fmt.Printf("%-6d %-10s %-8t %-7d %-7d 0x%04x\n",
			n.ID, n.Stage(), n.Awake(), n.Basic, n.Generic, n.ManufacturerID)
	})
	return nil
}
