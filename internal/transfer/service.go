package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/transfer/internal/config"
	"github.com/JonMunkholm/transfer/internal/logging"
)

// Service runs imports and exports against a Database.
type Service struct {
	db               Database
	limits           Limits
	writeConcurrency int
	timeout          time.Duration
	limiter          *Limiter
	progress         ProgressCallback
}

// Option customizes a Service.
type Option func(*Service)

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(s *Service) { s.progress = cb }
}

// WithLimiter shares a limiter between services.
func WithLimiter(l *Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// NewService creates a Service from transfer settings.
func NewService(db Database, cfg config.TransferConfig, opts ...Option) *Service {
	s := &Service{
		db: db,
		limits: Limits{
			MaxEntryBytes:   cfg.MaxEntryBytes,
			MaxArchiveBytes: cfg.MaxArchiveBytes,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			ExportChunkSize: cfg.ExportChunkSize,
			ImportBatchSize: cfg.ImportBatchSize,
		}.withDefaults(),
		writeConcurrency: max(cfg.WriteConcurrency, 1),
		timeout:          cfg.Timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime)
	}
	if s.progress == nil {
		s.progress = func(Progress) {}
	}
	return s
}

// Limiter returns the service's concurrency limiter.
func (s *Service) Limiter() *Limiter { return s.limiter }

// ImportOptions identifies the owner of imported records and the source.
type ImportOptions struct {
	AppID    string
	UserID   string
	FileName string
	Size     int64 // raw size if known, for byte progress
}

// ImportResult reports the outcome of an import. Failures are sorted by row.
type ImportResult struct {
	TransferID string        `json:"transferId"`
	Format     Format        `json:"format"`
	FileName   string        `json:"fileName,omitempty"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failures   []Failure     `json:"failures"`
	Duration   time.Duration `json:"-"`
}

// Import decodes r and writes the accepted records in batches.
//
// Structural errors (*ParseError, ErrFileTooLarge) and cancellation abort the
// import. Failed batches do not: their error is attributed to every source
// row in the batch and the remaining batches are still written.
func (s *Service) Import(ctx context.Context, r io.Reader, format Format, opts ImportOptions) (*ImportResult, error) {
	if err := s.acquire(ctx, DirectionImport); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	log := logging.WithFields(ctx, "transfer_id", id, "direction", DirectionImport, "format", format)
	start := time.Now()

	p := Progress{
		TransferID: id,
		Direction:  DirectionImport,
		Phase:      PhaseStarting,
		Format:     format,
		FileName:   opts.FileName,
		BytesTotal: opts.Size,
	}
	s.progress(p)
	log.Info("import started", "app_id", opts.AppID, "file", opts.FileName)

	counter := WrapForStreaming(r, s.limits.MaxUploadBytes)
	p.Phase = PhaseParsing
	s.progress(p)

	rows, err := s.parse(ctx, counter, format, DecodeOptions{
		AppID:  opts.AppID,
		UserID: opts.UserID,
		Limits: s.limits,
	}, &p)
	if err != nil {
		s.fail(p, err)
		log.Error("import failed", "phase", PhaseParsing, "bytes", counter.BytesRead(), "error", err)
		return nil, err
	}

	part := Partition(rows)
	p.Phase = PhaseWriting
	p.BytesRead = counter.BytesRead()
	p.TotalRows = len(rows)
	p.Failed = len(part.Failures)
	s.progress(p)
	log.Debug("parsed", "rows", len(rows), "valid", len(part.Items), "invalid", len(part.Failures))

	written, writeFailures, err := s.writeBatches(ctx, part, &p)
	if err != nil {
		s.fail(p, err)
		log.Error("import failed", "phase", PhaseWriting, "written", written, "error", err)
		return nil, err
	}

	failures := append(part.Failures, writeFailures...)
	slices.SortStableFunc(failures, func(a, b Failure) int { return a.Row - b.Row })
	if failures == nil {
		failures = []Failure{}
	}

	res := &ImportResult{
		TransferID: id,
		Format:     format,
		FileName:   opts.FileName,
		Total:      len(rows),
		Succeeded:  written,
		Failures:   failures,
		Duration:   time.Since(start),
	}

	p.Phase = PhaseComplete
	p.CurrentRow = p.TotalRows
	p.Succeeded = written
	p.Failed = len(failures)
	s.progress(p)
	log.Info("import complete",
		"total", res.Total,
		"succeeded", res.Succeeded,
		"failed", len(res.Failures),
		"duration", res.Duration,
	)
	return res, nil
}

// parseProgressInterval is how many decoded rows pass between parsing
// progress events.
const parseProgressInterval = 1000

// acquire takes a limiter slot and logs the limiter state when none frees up.
func (s *Service) acquire(ctx context.Context, dir Direction) error {
	err := s.limiter.Acquire(ctx)
	if errors.Is(err, ErrTooManyTransfers) {
		st := s.limiter.Status()
		logging.FromContext(ctx).Warn("transfer rejected",
			"direction", dir,
			"active", st.Active,
			"max_concurrent", st.MaxConcurrent,
		)
	}
	return err
}

// parse pulls every row from the decoder, reporting byte progress as it goes.
func (s *Service) parse(ctx context.Context, counter *CountingReader, format Format, opts DecodeOptions, p *Progress) ([]ParsedRow, error) {
	seq, err := Decode(ctx, counter, format, opts)
	if err != nil {
		return nil, err
	}

	var rows []ParsedRow
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if len(rows)%parseProgressInterval == 0 {
			p.BytesRead = counter.BytesRead()
			s.progress(*p)
		}
	}
	return rows, nil
}

// writeBatches inserts every batch with bounded concurrency. It returns the
// number of records written and the rows of failed batches; err is only set
// when the context ends.
func (s *Service) writeBatches(ctx context.Context, part PartitionResult, p *Progress) (int, []Failure, error) {
	log := logging.WithFields(ctx, "transfer_id", p.TransferID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.writeConcurrency)

	var (
		mu       sync.Mutex
		written  int
		failures []Failure
	)
	for batch := range Batched(part.Items, part.RowMap, s.limits.ImportBatchSize) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := s.db.InsertAssets(gctx, batch.Items)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				msg := FormatUserError(err)
				log.Warn("batch write failed",
					"first_row", batch.Rows[0],
					"rows", len(batch.Rows),
					"error", err,
				)
				for _, row := range batch.Rows {
					failures = append(failures, Failure{Row: row, Error: msg})
				}
				p.Failed += len(batch.Rows)
			} else {
				written += len(batch.Items)
				p.Succeeded = written
			}
			p.CurrentRow += len(batch.Rows)
			s.progress(*p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return written, failures, err
	}
	if err := ctx.Err(); err != nil {
		return written, failures, err
	}
	return written, failures, nil
}

// ExportOptions selects what to export.
type ExportOptions struct {
	AppID   string
	Filters Filters
}

// ExportResult reports the outcome of an export.
type ExportResult struct {
	TransferID string        `json:"transferId"`
	Format     Format        `json:"format"`
	Records    int           `json:"records"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"-"`
}

// Export writes the app's matching assets to w. CSV and NDJSON are streamed
// chunk by chunk; XLSX and ZIP are built in memory and written once.
func (s *Service) Export(ctx context.Context, w io.Writer, format Format, opts ExportOptions) (*ExportResult, error) {
	if err := s.acquire(ctx, DirectionExport); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	log := logging.WithFields(ctx, "transfer_id", id, "direction", DirectionExport, "format", format)
	start := time.Now()

	p := Progress{TransferID: id, Direction: DirectionExport, Phase: PhaseStarting, Format: format}
	s.progress(p)
	log.Info("export started", "app_id", opts.AppID)

	assets := opts.Filters.Apply(s.db.StreamAssets(ctx, opts.AppID, opts.Filters))
	res := &ExportResult{TransferID: id, Format: format}

	var err error
	switch {
	case format.Streaming():
		err = s.writeChunks(ctx, w, streamEncoders[format](assets, s.limits.ExportChunkSize), res, &p)
	case format == FormatXLSX:
		p.Phase = PhaseArchiving
		s.progress(p)
		err = s.writeArtifact(w, res, func() (*Artifact, error) { return BuildXLSX(ctx, assets) })
	case format == FormatZIP:
		p.Phase = PhaseArchiving
		s.progress(p)
		err = s.writeArtifact(w, res, func() (*Artifact, error) {
			return BuildZip(ctx, assets, func(zp ZipProgress) {
				p.CurrentFile = zp.CurrentFile
				p.ArchivePercent = zp.Percent
				s.progress(p)
			})
		})
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		s.fail(p, err)
		log.Error("export failed", "records", res.Records, "error", err)
		return nil, err
	}

	res.Duration = time.Since(start)
	p.Phase = PhaseComplete
	p.Succeeded = res.Records
	s.progress(p)
	log.Info("export complete", "records", res.Records, "bytes", res.Bytes, "duration", res.Duration)
	return res, nil
}

func (s *Service) writeChunks(ctx context.Context, w io.Writer, chunks iter.Seq2[ExportChunk, error], res *ExportResult, p *Progress) error {
	p.Phase = PhaseWriting
	for chunk, err := range chunks {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.WriteString(w, chunk.Data)
		res.Bytes += int64(n)
		if err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}
		res.Records += chunk.Records
		p.CurrentRow = res.Records
		p.Succeeded = res.Records
		s.progress(*p)
	}
	return nil
}

func (s *Service) writeArtifact(w io.Writer, res *ExportResult, build func() (*Artifact, error)) error {
	art, err := build()
	if err != nil {
		return err
	}
	n, err := w.Write(art.Data)
	res.Bytes = int64(n)
	res.Records = art.Count
	if err != nil {
		return fmt.Errorf("write %s: %w", art.Format, err)
	}
	return nil
}

func (s *Service) fail(p Progress, err error) {
	p.Phase = PhaseFailed
	p.Error = FormatUserError(err)
	var pe *ParseError
	if errors.As(err, &pe) {
		p.Error = pe.Error()
	}
	s.progress(p)
}

// ExportFileName suggests a file name for an export.
func ExportFileName(appID string, format Format, now time.Time) string {
	app := sanitizeID(strings.ToLower(appID))
	return fmt.Sprintf("assets-%s-%s.%s", app, now.UTC().Format("20060102T150405Z"), format.Extension())
}
