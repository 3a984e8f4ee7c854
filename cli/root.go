// Package cli holds the go-cvseq command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"go-cvseq/config"
	"go-cvseq/debug"
)

type options struct {
	configPath string
	verbose    bool
	logFile    bool

	cfg *config.Config
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "go-cvseq",
		Short: "Network-controlled two-channel CV/gate step sequencer",
		Long: `go-cvseq plays two looping step sequences of CV levels and gates and
accepts JSON commands over TCP (and optionally HTTP) to start, stop,
retune and reprogram them while they play.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/go-cvseq/config.json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every step")
	root.PersistentFlags().BoolVar(&opts.logFile, "log-file", false, "write logs to ~/.config/go-cvseq/debug.log")

	root.AddCommand(
		newServeCmd(opts),
		newSendCmd(opts),
		newMonitorCmd(opts),
		newPortsCmd(),
		newHistoryCmd(opts),
		newPresetCmd(opts),
	)
	return root
}

func (o *options) load() error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.verbose {
		cfg.Verbose = true
	}
	o.cfg = cfg

	debug.Init(os.Stderr, cfg.Verbose)
	if o.logFile {
		path, err := config.DebugLogPath()
		if err != nil {
			return err
		}
		return debug.Enable(path)
	}
	return nil
}

// Execute runs the command tree against os.Args
func Execute() {
	cobra.CheckErr(NewRootCmd().Execute())
}
