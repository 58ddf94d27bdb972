// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	apperr "occingest/cli/internal/errors"
	"occingest/cli/internal/ingest"
	"occingest/cli/internal/metrics"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	benchCount       int
	benchFailFast    bool
	benchMetricsAddr string
	benchClass       string
)

// benchCmd repeatedly ingests the same files, alternating between document and
// loose mode, and reports how long each batch took.
var benchCmd = &cobra.Command{
	Use:   "bench FILE...",
	Short: "Ingest the same files repeatedly and time each batch",
	Long: `The bench command creates --count batches from the given files, starting in
document mode and alternating with loose mode, and prints the duration of each.
One session is used throughout, so session renewal is exercised on long runs.

With --metrics-addr the ingestion metrics are served at /metrics while the
benchmark runs.`,
	Args: cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, err := requireProfile()
		if err != nil {
			return err
		}
		if benchCount <= 0 {
			return apperr.New(apperr.InvalidInput, "--count must be positive")
		}
		files, err := absPaths(args)
		if err != nil {
			return err
		}

		collector := metrics.NewCollector()
		if benchMetricsAddr != "" {
			stopServer, err := serveMetrics(benchMetricsAddr, collector.Handler())
			if err != nil {
				return err
			}
			defer stopServer()
			pterm.Info.Printf("Serving metrics at http://%s/metrics\n", benchMetricsAddr)
		}

		m, err := connect(ctx)
		if err != nil {
			return err
		}
		defer m.Close()

		svc, cleanup, err := newIngestService(ctx, m, ingest.WithObservers(collector))
		if err != nil {
			return err
		}
		defer cleanup()

		class := benchClass
		if class == "" {
			class = settings.DocumentClass
		}
		prefix := uuid.NewString()[:8]
		results := make([]benchResult, 0, benchCount)
		progress := startProgress(fmt.Sprintf("Batch 1/%d", benchCount))
		for i := 0; i < benchCount; i++ {
			if ctx.Err() != nil {
				break
			}
			mode := benchMode(i)
			name := fmt.Sprintf("%s-batch-%d", prefix, i)
			progress.SetStatus(fmt.Sprintf("Batch %d/%d (%s)", i+1, benchCount, mode))

			start := time.Now()
			id, err := svc.CreateAndIngestBatch(ctx, ingest.Request{
				Profile:       profile,
				Files:         files,
				Mode:          mode,
				DocumentClass: class,
				BatchName:     name,
			})
			r := benchResult{Name: name, Mode: mode, BatchID: id, Duration: time.Since(start), Err: err}
			if id == "" {
				r.BatchID = apperr.BatchIDOf(err)
			}
			results = append(results, r)
			progress.AddLine(r.line())

			if err != nil && benchFailFast {
				break
			}
		}
		progress.Stop()

		renderBenchTable(results)
		s := summarize(results)
		renderBenchSummary(s)
		if s.Failed > 0 {
			return fmt.Errorf("%d of %d batches failed", s.Failed, s.Runs)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 10, "Number of batches to create")
	benchCmd.Flags().BoolVar(&benchFailFast, "fail-fast", false, "Stop at the first failed batch")
	benchCmd.Flags().StringVar(&benchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	benchCmd.Flags().StringVar(&benchClass, "class", "", "Document class for created documents")
}

// benchMode starts with document mode and alternates.
func benchMode(i int) ingest.Mode {
	if i%2 == 0 {
		return ingest.Document
	}
	return ingest.Loose
}

type benchResult struct {
	Name     string
	Mode     ingest.Mode
	BatchID  string
	Duration time.Duration
	Err      error
}

func (r benchResult) line() string {
	status := pterm.Green("ok")
	if r.Err != nil {
		status = pterm.Red("failed")
	}
	return fmt.Sprintf("%-22s %-8s %8dms  %s", r.Name, r.Mode, r.Duration.Milliseconds(), status)
}

type benchSummary struct {
	Runs   int
	Failed int
	Total  time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
}

// summarize aggregates durations of successful batches only.
func summarize(results []benchResult) benchSummary {
	s := benchSummary{Runs: len(results)}
	ok := 0
	for _, r := range results {
		s.Total += r.Duration
		if r.Err != nil {
			s.Failed++
			continue
		}
		if ok == 0 || r.Duration < s.Min {
			s.Min = r.Duration
		}
		if r.Duration > s.Max {
			s.Max = r.Duration
		}
		s.Mean += r.Duration
		ok++
	}
	if ok > 0 {
		s.Mean /= time.Duration(ok)
	}
	return s
}

func renderBenchTable(results []benchResult) {
	if len(results) == 0 {
		return
	}
	data := pterm.TableData{{"Batch", "Mode", "Batch ID", "Duration", "Result"}}
	for _, r := range results {
		result := "ok"
		if r.Err != nil {
			result = apperr.ErrorIDOf(r.Err)
			if result == "" {
				result = string(apperr.KindOf(r.Err))
			}
		}
		data = append(data, []string{r.Name, r.Mode.String(), r.BatchID, fmt.Sprintf("%dms", r.Duration.Milliseconds()), result})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderBenchSummary(s benchSummary) {
	var b strings.Builder
	fmt.Fprintf(&b, "Batches:  %d (%d failed)\n", s.Runs, s.Failed)
	fmt.Fprintf(&b, "Duration: %s\n", s.Total.Round(time.Millisecond))
	if s.Runs > s.Failed {
		fmt.Fprintf(&b, "Per batch: min %s, mean %s, max %s",
			s.Min.Round(time.Millisecond), s.Mean.Round(time.Millisecond), s.Max.Round(time.Millisecond))
	}
	title := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("Benchmark Completed")
	if s.Failed > 0 {
		title = pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Benchmark Completed With Failures")
	}
	pterm.Println(pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(strings.TrimRight(b.String(), "\n")))
}

// serveMetrics listens on addr and serves h at /metrics until the returned
// function is called.
func serveMetrics(addr string, h http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, "listen on "+addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
