package transfer

// Direction distinguishes imports from exports in progress events.
type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
)

// Phase indicates the current stage of a transfer.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseParsing   Phase = "parsing"
	PhaseWriting   Phase = "writing"
	PhaseArchiving Phase = "archiving"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
)

// Progress represents the current state of a transfer.
type Progress struct {
	TransferID string
	Direction  Direction
	Phase      Phase
	Format     Format
	FileName   string
	TotalRows  int
	CurrentRow int
	Succeeded  int
	Failed     int
	Error      string // Non-empty if Phase is PhaseFailed

	// Byte-based progress for imports before the row count is known.
	BytesRead  int64
	BytesTotal int64

	// Archive progress reported while building a ZIP export.
	CurrentFile    string
	ArchivePercent int
}

// Percent returns the progress as a percentage (0-100).
// Row-based progress wins when the row count is known, then bytes, then the
// archive builder's own estimate.
func (p Progress) Percent() int {
	switch {
	case p.Phase == PhaseComplete:
		return 100
	case p.TotalRows > 0:
		return min(p.CurrentRow*100/p.TotalRows, 100)
	case p.BytesTotal > 0:
		return int(min(p.BytesRead*100/p.BytesTotal, 100))
	}
	return p.ArchivePercent
}

// ProgressCallback receives progress events. Calls are serialized per
// transfer.
type ProgressCallback func(Progress)
