// Command trafficgen runs the traffic-generator control plane: it binds
// the traffic core to the host's network ports and exposes the HTTP
// control surface (§6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netforge/trafficgen/command"
)

func main() {
	root := &cobra.Command{
		Use:   "trafficgen",
		Short: "Multi-port traffic generator and impairment emulator",
	}

	root.AddCommand(command.NewServeCommand())
	root.AddCommand(command.NewValidateConfigCommand())
	root.AddCommand(command.NewVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "trafficgen: %s\n", err.Error())
		os.Exit(1)
	}
}
