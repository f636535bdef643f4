package transfer

// # Error Codes Reference
//
// Batch writes fail as a whole; the failure is attributed to every source row
// in the batch. The raw database error is logged, and rows carry a mapped
// message with a code users can quote to support staff.
//
// Codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//	DB007 - Busy: Database was busy with conflicting operations
//	        Patterns: "deadlock", "database is locked"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Required field is empty
//	         Patterns: "required field"
//	VAL002 - Asset type contains unsupported characters or is too long
//	         Patterns: "may only contain", "must be at most"
//	VAL003 - Content is not valid UTF-8
//	         Patterns: "valid utf-8"
//	VAL004 - Content too large
//	         Patterns: "content: exceeds"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "maximum upload size"
//	FILE002 - Invalid CSV header
//	          Patterns: "missing required column"
//	FILE003 - Invalid or corrupt ZIP archive
//	          Patterns: "not a valid zip"
//	FILE004 - Missing or invalid manifest
//	          Patterns: "manifest"
//	FILE005 - Invalid workbook
//	          Patterns: "workbook"
//	FILE006 - Unsupported format
//	          Patterns: "unsupported format"
//
// # Transfer Errors (XFR001-XFR099)
//
//	XFR001 - Too many transfers in progress
//	         Patterns: "too many transfers"
//	XFR002 - Request cancelled
//	         Patterns: "context canceled"
//	XFR003 - Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the original
// technical error when users report ERR000.
//
// Patterns are matched case-insensitively using strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// Row failure messages shared by the codecs.
const (
	MsgMissingAssetType     = "Missing assetType"
	MsgHeaderSkipped        = "Header row skipped"
	MsgMissingContent       = "Missing content"
	MsgMissingContentColumn = "Missing required column: content"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{"A record with this ID already exists", "Remove duplicate records and retry the failed rows", "DB001"}
	msgUnique    = UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}
	msgForeign   = UserMessage{"Referenced record does not exist", "Ensure parent records exist before importing", "DB003"}
	msgBusy      = UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}
	msgAssetType = UserMessage{"Asset type is invalid", "Use at most 64 letters, digits or . _ / + -", "VAL002"}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: the first matching pattern wins.
var errorPatterns = []errorPattern{
	// Database constraint errors
	{"duplicate key", msgDuplicate},
	{"unique constraint", msgUnique},
	{"violates unique", msgUnique},
	{"foreign key constraint", msgForeign},
	{"violates foreign key", msgForeign},

	// Database connection errors
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", msgBusy},
	{"database is locked", msgBusy},

	// Validation errors
	{"required field", UserMessage{"Required field is empty", "Ensure every record has an asset type and content", "VAL001"}},
	{"may only contain", msgAssetType},
	{"must be at most", msgAssetType},
	{"valid utf-8", UserMessage{"Content is not valid UTF-8", "Save the file as UTF-8", "VAL003"}},
	{"content: exceeds", UserMessage{"Content is too large", "Split large assets or raise the entry size limit", "VAL004"}},

	// File errors
	{"maximum upload size", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"missing required column", UserMessage{"Required column is missing", "Include assetType and content columns in the header", "FILE002"}},
	{"not a valid zip", UserMessage{"File is not a valid ZIP archive", "Re-create the archive and try again", "FILE003"}},
	{"manifest", UserMessage{"Archive manifest is missing or invalid", "Export the archive again or fix manifest.json", "FILE004"}},
	{"workbook", UserMessage{"File is not a valid spreadsheet", "Save the file as .xlsx and try again", "FILE005"}},
	{"unsupported format", UserMessage{"File format is not supported", "Use csv, ndjson, xlsx or zip", "FILE006"}},

	// Transfer errors
	{"too many transfers", UserMessage{"System is busy processing other transfers", "Please wait a moment and try again", "XFR001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "XFR002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "XFR003"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
//	msg := MapError(errors.New("duplicate key violation"))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
