// Package exportfmt maps Google Workspace document types to the concrete
// format they are exported in. A Mapping is chosen once per invocation from
// one of three named presets and passed to whoever performs the export.
package exportfmt

import (
	"errors"
	"fmt"
	"sort"
)

// Workspace document MIME types. These have no byte representation until
// they are exported.
const (
	DocumentMIME     = "application/vnd.google-apps.document"
	SpreadsheetMIME  = "application/vnd.google-apps.spreadsheet"
	PresentationMIME = "application/vnd.google-apps.presentation"
)

// Preset names.
const (
	TextOnly     = "text-only"
	FullFidelity = "full-fidelity"
	PDF          = "pdf"
)

// ErrUnknownPreset is returned by Resolve for any name outside the preset set.
var ErrUnknownPreset = errors.New("exportfmt: unknown preset")

// Target is the format a Workspace document is exported in.
type Target struct {
	MIME      string
	Extension string // includes the leading dot
}

// Mapping is an immutable preset: Workspace MIME type to export target.
type Mapping struct {
	name    string
	targets map[string]Target
}

// Name returns the preset name the mapping was resolved from.
func (m Mapping) Name() string {
	return m.name
}

// Lookup returns the export target for a source MIME type. The second return
// is false when the type is not a Workspace document type.
func (m Mapping) Lookup(mime string) (Target, bool) {
	t, ok := m.targets[mime]
	return t, ok
}

// Types returns the Workspace MIME types covered by the mapping, sorted.
func (m Mapping) Types() []string {
	out := make([]string, 0, len(m.targets))
	for k := range m.targets {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// Preset describes a preset for help output.
type Preset struct {
	Name        string
	Description string
}

type presetDef struct {
	description string
	targets     map[string]Target
}

var presets = map[string]presetDef{
	TextOnly: {
		description: "Markdown for documents, CSV for spreadsheets, plain text for slides",
		targets: map[string]Target{
			DocumentMIME:     {MIME: "text/markdown", Extension: ".md"},
			SpreadsheetMIME:  {MIME: "text/csv", Extension: ".csv"},
			PresentationMIME: {MIME: "text/plain", Extension: ".txt"},
		},
	},
	FullFidelity: {
		description: "Office formats: docx, xlsx, pptx",
		targets: map[string]Target{
			DocumentMIME: {
				MIME:      "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				Extension: ".docx",
			},
			SpreadsheetMIME: {
				MIME:      "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				Extension: ".xlsx",
			},
			PresentationMIME: {
				MIME:      "application/vnd.openxmlformats-officedocument.presentationml.presentation",
				Extension: ".pptx",
			},
		},
	},
	PDF: {
		description: "PDF for every document type",
		targets: map[string]Target{
			DocumentMIME:     {MIME: "application/pdf", Extension: ".pdf"},
			SpreadsheetMIME:  {MIME: "application/pdf", Extension: ".pdf"},
			PresentationMIME: {MIME: "application/pdf", Extension: ".pdf"},
		},
	},
}

// Resolve returns the mapping for a preset name.
func Resolve(name string) (Mapping, error) {
	def, ok := presets[name]
	if !ok {
		return Mapping{}, fmt.Errorf("%w %q (valid: %s, %s, %s)", ErrUnknownPreset, name, TextOnly, FullFidelity, PDF)
	}

	targets := make(map[string]Target, len(def.targets))
	for k, v := range def.targets {
		targets[k] = v
	}

	return Mapping{name: name, targets: targets}, nil
}

// Presets lists the preset names in a fixed order with their descriptions.
func Presets() []Preset {
	names := []string{TextOnly, FullFidelity, PDF}
	out := make([]Preset, 0, len(names))

	for _, n := range names {
		out = append(out, Preset{Name: n, Description: presets[n].description})
	}

	return out
}

// Names returns the preset names in the same order as Presets.
func Names() []string {
	return []string{TextOnly, FullFidelity, PDF}
}
