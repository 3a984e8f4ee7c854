package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go-cvseq/preset"
	"go-cvseq/protocol"
)

func newPresetCmd(opts *options) *cobra.Command {
	var addr, dir string

	remote := func() protocol.Remote {
		if addr == "" {
			addr = dialAddr(opts.cfg.Listen)
		}
		return protocol.Remote(addr)
	}
	presetDir := func() (string, error) {
		if dir != "" {
			return dir, nil
		}
		return preset.Dir()
	}

	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Save and restore sequencer programs",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "sequencer address (default from config)")
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "presets directory (default ~/.config/go-cvseq/presets)")

	cmd.AddCommand(&cobra.Command{
		Use:   "save [name]",
		Short: "Capture tempo and sequences from the running sequencer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := presetDir()
			if err != nil {
				return err
			}
			p, err := preset.Capture(cmd.Context(), remote())
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			file, err := preset.Save(d, name, p, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), file)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load [file]",
		Short: "Send a saved preset (default the newest) to the running sequencer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := presetDir()
			if err != nil {
				return err
			}
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			p, err := preset.Load(d, file)
			if err != nil {
				return err
			}
			if err := preset.Apply(cmd.Context(), remote(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d BPM, %d channels\n", p.Tempo, len(p.Sequences))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved presets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := presetDir()
			if err != nil {
				return err
			}
			infos, err := preset.List(d)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tNAME\tSAVED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Filename, dash(info.Name), info.Timestamp.Format(time.DateTime))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := presetDir()
			if err != nil {
				return err
			}
			return preset.Delete(d, args[0])
		},
	})

	return cmd
}
