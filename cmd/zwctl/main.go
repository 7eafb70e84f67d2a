// Command zwctl opens a Z-Wave controller on a serial port and exposes
// its node table, statistics and administrative commands from the
// terminal.
package main

import (
	"fmt"
	"os"

	"github.com/cpchain-network/gozwave/cmd/zwctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
