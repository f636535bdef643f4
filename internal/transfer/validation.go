package transfer

// validation.go holds the structural validation every codec applies to a
// decoded record before it is accepted for insertion.
//
// Codecs report their own format-level problems ("Missing assetType",
// malformed JSON). Everything that is common to all formats lives here so a
// record imported from CSV is held to exactly the same rules as one pulled out
// of a ZIP archive.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxAssetTypeLength bounds the assetType field.
const MaxAssetTypeLength = 64

var assetTypePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/+-]*$`)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field name as it appears on the wire
	Value   string // The invalid value, truncated for display
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidateInsert checks a normalized record. maxContent bounds the content
// length in bytes; zero disables the check.
func ValidateInsert(ins AssetInsert, maxContent int64) error {
	if strings.TrimSpace(ins.AppID) == "" {
		return ValidationError{Field: "appId", Message: "required field is empty"}
	}

	switch {
	case ins.AssetType == "":
		return ValidationError{Field: "assetType", Message: "required field is empty"}
	case len(ins.AssetType) > MaxAssetTypeLength:
		return ValidationError{
			Field:   "assetType",
			Value:   truncate(ins.AssetType, 32),
			Message: fmt.Sprintf("must be at most %d characters", MaxAssetTypeLength),
		}
	case !assetTypePattern.MatchString(ins.AssetType):
		return ValidationError{
			Field:   "assetType",
			Value:   truncate(ins.AssetType, 32),
			Message: "may only contain letters, digits and . _ / + -",
		}
	}

	if !utf8.ValidString(ins.Content) {
		return ValidationError{Field: "content", Message: "must be valid UTF-8"}
	}
	if maxContent > 0 && int64(len(ins.Content)) > maxContent {
		return ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("exceeds %d bytes", maxContent),
		}
	}
	return nil
}

// normalizeInsert trims the type, applies validation and converts the outcome
// into a ParsedRow for the given source row.
func normalizeInsert(row int, opts DecodeOptions, assetType, content string) ParsedRow {
	assetType = strings.TrimSpace(assetType)
	if assetType == "" {
		return failedRow(row, MsgMissingAssetType)
	}
	ins := opts.insert(assetType, content)
	if err := ValidateInsert(ins, opts.Limits.MaxEntryBytes); err != nil {
		return failedRow(row, err.Error())
	}
	return okRow(row, ins)
}

// truncate shortens s to at most n runes for display.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
