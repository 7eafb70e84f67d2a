package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the controller and block until interrupted",
	RunE:  runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	driver, err := openDriver(30 * time.Second)
	if err != nil {
		return err
	}
	defer driver.Close()

	fmt.Println("controller ready, press ctrl-c to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}
