package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"go-cvseq/protocol"
	"go-cvseq/sequencer"
)

func newSendCmd(opts *options) *cobra.Command {
	var (
		addr    string
		channel string
		cv      []float64
		gates   []int
	)

	cmd := &cobra.Command{
		Use:   "send <command> [tempo]",
		Short: "Send one command to a running sequencer",
		Example: `  go-cvseq send start
  go-cvseq send tempo 140
  go-cvseq send update_sequence --channel channel_1 --cv 0.1,0.9 --gates 1,0
  go-cvseq send get_sequences`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := protocol.Request{Type: args[0]}

			if sequencer.CommandType(args[0]) == sequencer.CmdTempo {
				if len(args) != 2 {
					return fmt.Errorf("tempo needs a BPM value")
				}
				bpm, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("tempo %q: %w", args[1], err)
				}
				req.Value = json.RawMessage(strconv.Itoa(bpm))
			}
			if channel != "" {
				req.Channel = channel
			}
			if cmd.Flags().Changed("cv") {
				req.CVValues = &cv
			}
			if cmd.Flags().Changed("gates") {
				req.GateStates = &gates
			}

			if addr == "" {
				addr = dialAddr(opts.cfg.Listen)
			}
			resp, err := protocol.Send(cmd.Context(), addr, req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !resp.OK() {
				return fmt.Errorf("%s", resp.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "sequencer address (default from config)")
	cmd.Flags().StringVar(&channel, "channel", "", "channel for update_sequence")
	cmd.Flags().Float64SliceVar(&cv, "cv", nil, "comma separated CV levels 0-1")
	cmd.Flags().IntSliceVar(&gates, "gates", nil, "comma separated gates 0/1")
	return cmd
}

// dialAddr turns a listen address into one a local client can dial
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
