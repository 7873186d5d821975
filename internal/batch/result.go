package batch

import (
	"fmt"
	"io"
	"os"
	"time"
)

// FileStatus is the outcome of processing one file.
type FileStatus string

const (
	StatusProcessed FileStatus = "processed"
	StatusSkipped   FileStatus = "skipped"
	StatusFailed    FileStatus = "failed"
)

// FileResult records what happened to one input file.
type FileResult struct {
	Path     string        `json:"path"`
	Output   string        `json:"output,omitempty"`
	Status   FileStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

// Result holds the outcome of a batch run.
type Result struct {
	Files    []FileResult  `json:"files"`
	Duration time.Duration `json:"duration_ns"`
	Workers  int           `json:"workers"`
}

// Stats summarizes a Result.
type Stats struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Workers   int           `json:"workers"`
	Duration  time.Duration `json:"duration_ns"`
}

// Stats counts files per status.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Files), Workers: r.Workers, Duration: r.Duration}
	for _, f := range r.Files {
		switch f.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Outputs returns the outputs of processed files in input order.
func (r *Result) Outputs() []string {
	var out []string
	for _, f := range r.Files {
		if f.Status == StatusProcessed && f.Output != "" {
			out = append(out, f.Output)
		}
	}
	return out
}

// FirstFailure returns the first failed file in input order, or nil.
func (r *Result) FirstFailure() *FileResult {
	for i := range r.Files {
		if r.Files[i].Status == StatusFailed {
			return &r.Files[i]
		}
	}
	return nil
}

// Format renders the result as text, json or csv.
func (r *Result) Format(format string) (string, error) {
	return formatResult(r, format)
}

// Save writes the formatted result to outputFile, or to w when outputFile
// is empty.
func (r *Result) Save(format, outputFile string, w io.Writer) error {
	output, err := r.Format(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total files: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", s.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	if s.Processed > 0 && s.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f files/sec\n", float64(s.Processed)/s.Duration.Seconds())
	}
}
