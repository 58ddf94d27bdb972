package ingest

import (
	"fmt"
	"strings"

	"occingest/cli/internal/backend"
)

// DefaultBatchName is used when a request names no batch.
const DefaultBatchName = "noname"

// Mode selects how files are attached to a batch.
type Mode int

const (
	// Document creates input documents and attaches files to them.
	Document Mode = iota
	// Loose attaches every file directly to the batch in one call.
	Loose
)

func (m Mode) String() string {
	switch m {
	case Loose:
		return "loose"
	case Document:
		return "document"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// format maps a mode to the batchFormat query value.
func (m Mode) format() (backend.BatchFormat, bool) {
	switch m {
	case Loose:
		return backend.LooseFilesInput, true
	case Document:
		return backend.DocumentFilesInput, true
	}
	return "", false
}

// ParseMode accepts "loose" or "document".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loose", "loosefiles", "loosefilesinput":
		return Loose, nil
	case "document", "documents", "documentfilesinput", "":
		return Document, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want loose or document)", s)
}

// Request describes one batch to create.
type Request struct {
	Profile string
	// Files are uploaded in order.
	Files []string
	Mode  Mode
	// DocumentClass tags every created document. Ignored in loose mode.
	DocumentClass string
	// BatchName defaults to DefaultBatchName.
	BatchName string
}

func (r Request) batchName() string {
	if n := strings.TrimSpace(r.BatchName); n != "" {
		return n
	}
	return DefaultBatchName
}

// Grouping partitions the files of a document-mode request into documents.
// Each group becomes one created document followed by one upload of its files.
type Grouping func(files []string) [][]string

// OneDocumentPerFile puts every file in its own document, preserving order.
func OneDocumentPerFile(files []string) [][]string {
	groups := make([][]string, 0, len(files))
	for _, f := range files {
		groups = append(groups, []string{f})
	}
	return groups
}

// SingleDocument puts all files into one document.
func SingleDocument(files []string) [][]string {
	return [][]string{files}
}
