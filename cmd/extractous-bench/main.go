// Command extractous-bench extracts files and prints the results as JSON for
// the benchmark harness.
//
//	extractous-bench <sync|batch|stream> <file> [files...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/FranciscoLopezStriderIntel/extractous"
)

type payload struct {
	Content          string              `json:"content"`
	Metadata         map[string][]string `json:"metadata,omitempty"`
	Truncated        bool                `json:"truncated,omitempty"`
	Error            string              `json:"error,omitempty"`
	ExtractionTimeMs float64             `json:"_extraction_time_ms"`
	BatchTotalTimeMs float64             `json:"_batch_total_ms,omitempty"`
}

var errUsage = errors.New("usage: extractous-bench <sync|batch|stream> <file> [files...]")

func main() {
	level := slog.LevelWarn
	if os.Getenv("EXTRACTOUS_BENCHMARK_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	err := run(context.Background(), os.Args[1:], os.Stdout, log)
	if shutdownErr := extractous.RuntimeShutdown(); shutdownErr != nil {
		log.Debug("runtime shutdown failed", "error", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting with Go binding: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, log *slog.Logger) error {
	if len(args) < 2 {
		return errUsage
	}
	mode, files := args[0], args[1:]
	log.Debug("benchmark started", "mode", mode, "files", len(files))

	ex, err := loadExtractor(log)
	if err != nil {
		return err
	}

	var result any
	switch mode {
	case "sync":
		if len(files) != 1 {
			return fmt.Errorf("sync mode requires exactly one file")
		}
		result, err = extractSync(ex, files[0])
	case "stream":
		if len(files) != 1 {
			return fmt.Errorf("stream mode requires exactly one file")
		}
		result, err = extractStream(ex, files[0])
	case "batch":
		result, err = extractBatch(ctx, ex, files)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}
	return encode(out, result)
}

// loadExtractor picks up extractous.yaml from the working directory or a
// parent, if there is one.
func loadExtractor(log *slog.Logger) (extractous.Extractor, error) {
	found, err := extractous.ConfigDiscover()
	if err != nil {
		return extractous.Extractor{}, err
	}
	ex := extractous.New()
	if found != nil {
		log.Debug("using discovered config")
		ex = *found
	}
	return ex.SetLogger(log), nil
}

func extractSync(ex extractous.Extractor, path string) (*payload, error) {
	start := time.Now()
	res, err := ex.Extract(extractous.FileInput(path))
	if err != nil {
		return nil, err
	}
	return &payload{
		Content:          res.Content,
		Metadata:         res.Metadata,
		Truncated:        res.Truncated,
		ExtractionTimeMs: millisSince(start),
	}, nil
}

func extractStream(ex extractous.Extractor, path string) (*payload, error) {
	start := time.Now()
	r, md, err := ex.ExtractFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r.UTF8())
	if err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return &payload{
		Content:          string(data),
		Metadata:         md,
		ExtractionTimeMs: millisSince(start),
	}, nil
}

func extractBatch(ctx context.Context, ex extractous.Extractor, paths []string) ([]*payload, error) {
	inputs := make([]extractous.Input, len(paths))
	for i, p := range paths {
		inputs[i] = extractous.FileInput(p)
	}
	start := time.Now()
	results, err := ex.BatchExtractToString(ctx, inputs, 0)
	if err != nil {
		return nil, err
	}
	totalMs := millisSince(start)
	perMs := totalMs / float64(max(len(results), 1))

	out := make([]*payload, 0, len(results))
	for _, r := range results {
		p := &payload{Content: r.Content, ExtractionTimeMs: perMs, BatchTotalTimeMs: totalMs}
		if r.Err != nil {
			p.Error = r.Err.Error()
		}
		out = append(out, p)
	}
	return out, nil
}

func millisSince(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000.0
}

func encode(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(value)
}
