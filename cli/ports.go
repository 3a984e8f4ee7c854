package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-cvseq/midi"
	"go-cvseq/serial"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI output ports and serial devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			defer midi.Close()

			fmt.Fprintln(w, "MIDI outputs:")
			outs, err := midi.OutPorts()
			if err != nil {
				fmt.Fprintf(w, "  error: %v\n", err)
			}
			for i, name := range outs {
				fmt.Fprintf(w, "  [%d] %s\n", i, name)
			}

			fmt.Fprintln(w, "\nSerial devices:")
			devices, err := serial.Ports()
			if err != nil {
				fmt.Fprintf(w, "  error: %v\n", err)
			}
			for _, d := range devices {
				fmt.Fprintf(w, "  %s\n", d)
			}
			return nil
		},
	}
}
