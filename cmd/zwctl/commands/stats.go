package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print driver-wide traffic and error statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(30 * time.Second)
	if err != nil {
		return err
	}
	defer driver.Close()

	s := driver.Stats()
	fmt.Printf("sof=%d ack=%d nak=%d can=%d oof=%d bad_checksum=%d\n", s.SOF, s.Ack, s.Nak, s.Can, s.OOF, s.BadChecksum)
	fmt.Printf("reads=%d writes=%d dropped=%d retries=%d callbacks=%d\n", s.Reads, s.Writes, s.Dropped, s.Retries, s.Callbacks)
	fmt.Printf("no_ack=%d net_busy=%d non_delivery=%d routed_busy=%d bad_routes=%d\n", s.NoAck, s.NetBusy, s.NonDelivery, s.RoutedBusy, s.BadRoutes)
	fmt.Printf("soft_resets=%d hard_resets=%d\n", s.SoftResets, s.HardResets)
	return nil
}
