package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/transfer/internal/logging"
	"github.com/JonMunkholm/transfer/internal/sink"
	"github.com/JonMunkholm/transfer/internal/transfer"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	Format    string
	AppID     string
	AssetType string
	After     string
	Before    string
	IDs       []string
	Out       string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assets to a file, S3 or stdout",
		Long: `Export an application's assets.

--out takes a file path, s3://bucket/key or - for standard output. A directory
path (ending in /) gets a generated file name. The format is inferred from the
output name when --format is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (csv|ndjson|xlsx|zip)")
	cmd.Flags().StringVar(&opts.AppID, "app", "", "application whose assets are exported")
	cmd.Flags().StringVar(&opts.AssetType, "type", "", "only export this asset type")
	cmd.Flags().StringVar(&opts.After, "after", "", "only assets created at or after this RFC 3339 time")
	cmd.Flags().StringVar(&opts.Before, "before", "", "only assets created before this RFC 3339 time")
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "only these asset IDs (repeatable)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "-", "destination: path, s3://bucket/key or -")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func runExport(cmd *cobra.Command, rootOpts *RootOptions, opts *ExportOptions) error {
	ctx := cmd.Context()

	filters, err := opts.filters()
	if err != nil {
		return err
	}
	format, target, err := opts.resolve(time.Now())
	if err != nil {
		return err
	}

	dest, name, err := sink.ForTarget(ctx, target, rootOpts.Config.Storage)
	if err != nil {
		return err
	}
	if _, ok := dest.(sink.Stdout); ok {
		dest = sink.Stdout{W: cmd.OutOrStdout()}
	}

	s, err := rootOpts.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	obj, err := dest.Create(ctx, name, format.MIMEType())
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	svc := transfer.NewService(s, rootOpts.Config.Transfer, transfer.WithProgress(progressLogger(ctx)))
	res, err := svc.Export(ctx, obj, format, transfer.ExportOptions{AppID: opts.AppID, Filters: filters})
	if err != nil {
		return errors.Join(fmt.Errorf("export: %w", err), obj.Abort())
	}
	if err := obj.Close(); err != nil {
		return fmt.Errorf("publish export: %w", err)
	}

	logging.WithFields(ctx, "transfer_id", res.TransferID).Info("export written",
		"target", target,
		"format", format,
		"records", res.Records,
		"bytes", res.Bytes,
	)
	return nil
}

// resolve picks the format and the final target. A target ending in "/"
// gets a generated file name.
func (o *ExportOptions) resolve(now time.Time) (transfer.Format, string, error) {
	target := o.Out
	if target == "" {
		target = "-"
	}

	var (
		format transfer.Format
		err    error
	)
	switch {
	case o.Format != "":
		format, err = transfer.ParseFormat(o.Format)
	case target == "-" || target[len(target)-1] == '/':
		format = transfer.FormatCSV
	default:
		format, err = transfer.FormatFromFilename(target)
	}
	if err != nil {
		return "", "", err
	}

	if target[len(target)-1] == '/' {
		target += transfer.ExportFileName(o.AppID, format, now)
	}
	return format, target, nil
}

func (o *ExportOptions) filters() (transfer.Filters, error) {
	f := transfer.Filters{AssetType: o.AssetType, IDs: o.IDs}
	for _, b := range []struct {
		flag string
		raw  string
		dst  **time.Time
	}{
		{"--after", o.After, &f.After},
		{"--before", o.Before, &f.Before},
	} {
		if b.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, b.raw)
		if err != nil {
			return f, fmt.Errorf("%s: %w", b.flag, err)
		}
		*b.dst = &t
	}
	return f, nil
}
