// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	apperr "occingest/cli/internal/errors"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatError renders an error for the terminal: a title, what it usually
// means, the batch and service error identifiers when known, and what to do next.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	title, lines, action := describe(apperr.KindOf(err))

	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	b.WriteString("\n\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}

	if id := apperr.BatchIDOf(err); id != "" {
		fmt.Fprintf(&b, "\nBatch:         %s\n", id)
	}
	if id := apperr.ErrorIDOf(err); id != "" && id != apperr.NoErrorID {
		fmt.Fprintf(&b, "Service error: %s\n", id)
	}

	if action != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + action))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return b.String()
}

func describe(kind apperr.Kind) (title string, lines []string, action string) {
	switch kind {
	case apperr.AuthFailed:
		return "Login Failed", []string{
			"Capture Center rejected the sign-in.",
			"Check the server address, user name and password.",
		}, "Run 'occingest login' to store a new password"
	case apperr.NotLoggedIn:
		return "Not Logged In", []string{
			"No password is stored for this server and user.",
		}, "Run 'occingest login' first"
	case apperr.Transport:
		return "Connection Problem", []string{
			"The request did not get an answer from Capture Center.",
			"The server may be unreachable or the upload took longer than allowed.",
		}, "Check connectivity or raise --ms-per-mb for large files"
	case apperr.Service:
		return "Request Rejected", []string{
			"Capture Center answered with an error.",
		}, ""
	case apperr.Ingestion:
		return "Batch Not Submitted", []string{
			"The files were uploaded but the batch could not be closed.",
			"The batch may still be open on the server.",
		}, "Look the batch up in Capture Center, or delete it with 'occingest delete'"
	case apperr.InvalidInput:
		return "Invalid Request", nil, ""
	case apperr.Config:
		return "Configuration Problem", nil, "Run 'occingest login --server ... --username ...' or set OCCINGEST_* variables"
	default:
		return "Error", nil, ""
	}
}

// PresentFormattedError prints FormatError(err) to stdout.
func PresentFormattedError(err error) {
	fmt.Println()
	fmt.Println(FormatError(err))
	fmt.Println()
}
