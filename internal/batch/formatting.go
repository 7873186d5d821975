package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func formatResult(r *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatJSON(r *Result) (string, error) {
	payload := struct {
		Files []FileResult `json:"files"`
		Stats Stats        `json:"stats"`
	}{Files: r.Files, Stats: r.Stats()}

	bts, err := json.MarshalIndent(payload, "", "  ")
	return string(bts), err
}

func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"file", "status", "output", "error", "duration_ms"}); err != nil {
		return "", err
	}
	for _, f := range r.Files {
		row := []string{
			f.Path,
			string(f.Status),
			f.Output,
			f.Error,
			strconv.FormatInt(f.Duration.Milliseconds(), 10),
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(r *Result) string {
	var output strings.Builder
	for _, f := range r.Files {
		switch f.Status {
		case StatusProcessed:
			fmt.Fprintf(&output, "[%s] %s -> %s (%v)\n", f.Status, f.Path, f.Output, f.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(&output, "[%s] %s: %s\n", f.Status, f.Path, f.Error)
		}
	}
	return output.String()
}
