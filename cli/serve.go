package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-cvseq/app"
	"go-cvseq/config"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen, httpListen, output, journalPath string
	var tempo int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sequencer",
		Long: `Runs the playback loops and the TCP command server. Flags override
the config file and CVSEQ_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("http") {
				cfg.HTTPListen = httpListen
			}
			if flags.Changed("tempo") {
				cfg.Tempo = tempo
			}
			if flags.Changed("output") {
				cfg.Output.Backend = config.OutputBackend(output)
			}
			if flags.Changed("journal") {
				cfg.JournalPath = journalPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "TCP command address")
	cmd.Flags().StringVar(&httpListen, "http", "", "HTTP bridge address (empty disables)")
	cmd.Flags().IntVar(&tempo, "tempo", 0, "initial tempo in BPM")
	cmd.Flags().StringVar(&output, "output", "", "output backend: log, midi or serial")
	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite command journal path")
	return cmd
}
