// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: Timeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "occ.invalid"}, want: DNS},
		{name: "refused text", err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), want: ConnectionRefused},
		{name: "tls", err: errors.New("x509: certificate signed by unknown authority"), want: TLS},
		{name: "server", err: errors.New("502 Bad Gateway"), want: Server},
		{name: "other", err: errors.New("EOF"), want: Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractHostFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://occ.example.com/api/v1/", want: "occ.example.com"},
		{in: "10.10.10.10", want: "10.10.10.10"},
		{in: "http://occ:8080", want: "occ:8080"},
	}
	for _, tt := range tests {
		if got := ExtractHostFromURL(tt.in); got != tt.want {
			t.Errorf("ExtractHostFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
