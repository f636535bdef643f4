package transfer

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ManifestName is the required index member of every archive.
const ManifestName = "manifest.json"

// ManifestVersion is the only version writers emit.
const ManifestVersion = 1

// Manifest indexes the members of a ZIP archive.
type Manifest struct {
	Version int             `json:"version"`
	Entries []ManifestEntry `json:"entries"`
}

// ManifestEntry maps one record to its archive member.
type ManifestEntry struct {
	ID          string `json:"id"`
	File        string `json:"file"`
	Type        string `json:"type"`
	Size        *int64 `json:"size,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type legacyManifest struct {
	Assets []ManifestEntry `json:"assets"`
}

//go:embed schema/*.json
var schemaFS embed.FS

const (
	schemaBase   = "https://schemas.transfer.local/"
	schemaV1     = schemaBase + "manifest.v1.json"
	schemaLegacy = schemaBase + "manifest.legacy.json"
)

var loadSchemas = sync.OnceValues(func() (*manifestSchemas, error) {
	c := jsonschema.NewCompiler()
	for _, name := range []string{"manifest.v1.json", "manifest.legacy.json"} {
		raw, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, doc); err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
	}

	current, err := c.Compile(schemaV1)
	if err != nil {
		return nil, err
	}
	legacy, err := c.Compile(schemaLegacy)
	if err != nil {
		return nil, err
	}
	return &manifestSchemas{current: current, legacy: legacy}, nil
})

type manifestSchemas struct {
	current *jsonschema.Schema
	legacy  *jsonschema.Schema
}

// DecodeManifest parses manifest.json. The current versioned shape is tried
// first; the legacy {assets: [...]} shape is migrated to version 1. Any other
// document is a *ParseError naming both accepted shapes.
func DecodeManifest(data []byte) (*Manifest, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load manifest schemas: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Message: "invalid manifest JSON", Err: err}
	}

	currentErr := schemas.current.Validate(inst)
	if currentErr == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &ParseError{Message: "invalid manifest", Err: err}
		}
		if m.Entries == nil {
			m.Entries = []ManifestEntry{}
		}
		return &m, nil
	}

	if err := schemas.legacy.Validate(inst); err == nil {
		var lm legacyManifest
		if err := json.Unmarshal(data, &lm); err != nil {
			return nil, &ParseError{Message: "invalid manifest", Err: err}
		}
		return migrateLegacy(lm), nil
	}

	return nil, &ParseError{
		Message: `manifest must be {"version": 1, "entries": [...]} or legacy {"assets": [...]}`,
		Err:     currentErr,
	}
}

func migrateLegacy(lm legacyManifest) *Manifest {
	entries := lm.Assets
	if entries == nil {
		entries = []ManifestEntry{}
	}
	return &Manifest{Version: ManifestVersion, Entries: entries}
}

// EncodeManifest serializes m in the current shape.
func EncodeManifest(m *Manifest) ([]byte, error) {
	out := *m
	out.Version = ManifestVersion
	if out.Entries == nil {
		out.Entries = []ManifestEntry{}
	}
	return json.MarshalIndent(out, "", "  ")
}
