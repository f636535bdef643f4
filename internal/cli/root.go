// Package cli implements the transfer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/logging"
	"github.com/JonMunkholm/transfer/internal/store"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

// RootOptions holds global flags and the state they resolve to.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Config is loaded in PersistentPreRunE.
	Config *config.Config
}

// NewRootCommand creates the root command for the transfer CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Import and export assets",
		Long: `Import assets from CSV, NDJSON, XLSX or ZIP files and export them back.

Configuration comes from defaults, an optional YAML file (--config or
TRANSFER_CONFIG) and environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// setup loads configuration, installs the logger and seeds a request ID so
// every log line of one invocation correlates.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(config.FileEnvVar)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	o.Config = cfg

	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithRequestID(ctx, uuid.NewString()))
	return nil
}

// openStore connects to the configured database.
func (o *RootOptions) openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, o.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// Execute runs the root command with ctx and reports a failure on stderr.
// Errors with a known support code get the user message on a second line.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if transfer.IsUserFacing(err) {
			fmt.Fprintf(stderr, "  %s\n", transfer.FormatUserError(err))
		}
		return 1
	}
	return 0
}
