package logging

import (
	"errors"
	"testing"

	apperr "occingest/cli/internal/errors"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestFormatErrorIngestion(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	err := &apperr.E{
		Kind:    apperr.Ingestion,
		Message: "Internal Server Error",
		ErrorID: "WorkflowDown",
		BatchID: "B-42",
		Context: "Closing batch failure",
	}
	out := FormatError(err)
	assert.Contains(t, out, "Batch Not Submitted")
	assert.Contains(t, out, "Batch:         B-42")
	assert.Contains(t, out, "Service error: WorkflowDown")
	assert.Contains(t, out, "occingest delete")
}

func TestFormatErrorHidesPlaceholderID(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	err := &apperr.E{Kind: apperr.Transport, ErrorID: apperr.NoErrorID, Err: errors.New("dial tcp: timeout")}
	out := FormatError(err)
	assert.Contains(t, out, "Connection Problem")
	assert.NotContains(t, out, "Service error")
	assert.Contains(t, out, "dial tcp: timeout")
}

func TestPresentErrorMasks(t *testing.T) {
	assert.Equal(t, "journal: password=***", PresentError("journal", errors.New("password=abc")))
	assert.Empty(t, PresentError("x", nil))
	assert.Empty(t, FormatError(nil))
}
