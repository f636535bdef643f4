package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/transfer/internal/logging"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	Format string
	AppID  string
	UserID string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import assets from a file",
		Long: `Import assets from a CSV, NDJSON, XLSX or ZIP file.

Rows that fail validation or whose batch cannot be written are reported in
the JSON result with their source row number; the remaining rows are still
imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "input format (csv|ndjson|xlsx|zip); inferred from the extension when empty")
	cmd.Flags().StringVar(&opts.AppID, "app", "", "application that owns the imported assets")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user recorded on the imported assets")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func runImport(cmd *cobra.Command, rootOpts *RootOptions, opts *ImportOptions, path string) error {
	ctx := cmd.Context()

	format, err := resolveFormat(opts.Format, path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	s, err := rootOpts.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	svc := transfer.NewService(s, rootOpts.Config.Transfer, transfer.WithProgress(progressLogger(ctx)))
	res, err := svc.Import(ctx, f, format, transfer.ImportOptions{
		AppID:    opts.AppID,
		UserID:   opts.UserID,
		FileName: filepath.Base(path),
		Size:     info.Size(),
	})
	if err != nil {
		return fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// resolveFormat parses an explicit --format or infers one from name.
func resolveFormat(flag, name string) (transfer.Format, error) {
	if flag != "" {
		return transfer.ParseFormat(flag)
	}
	return transfer.FormatFromFilename(name)
}

// progressLogger logs each phase change at debug level.
func progressLogger(ctx context.Context) transfer.ProgressCallback {
	var last transfer.Phase
	return func(p transfer.Progress) {
		if p.Phase == last {
			return
		}
		last = p.Phase
		logging.WithFields(ctx, "transfer_id", p.TransferID, "direction", p.Direction).Debug("transfer progress",
			"phase", p.Phase,
			"percent", p.Percent(),
			"rows", p.TotalRows,
			"failed", p.Failed,
		)
	}
}
