package cli

import (
	"github.com/spf13/cobra"

	"go-cvseq/protocol"
	"go-cvseq/theme"
	"go-cvseq/tui"
)

func newMonitorCmd(opts *options) *cobra.Command {
	var addr, palette string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch and control a running sequencer from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = dialAddr(opts.cfg.Listen)
			}

			p := theme.DefaultPalette()
			if palette != "" {
				var err error
				if p, err = theme.LoadGPL(palette); err != nil {
					return err
				}
			}
			return tui.Run(protocol.Remote(addr), addr, theme.New(p))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "sequencer address (default from config)")
	cmd.Flags().StringVar(&palette, "palette", "", "GIMP .gpl palette file")
	return cmd
}
