package research

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Output formats accepted by SaveLookup and SaveReport.
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// FormatFromPath infers the format from the file extension, defaulting to markdown.
func FormatFromPath(path string) string {
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case FormatText, FormatJSON, FormatCSV:
		return ext
	}
	return FormatMarkdown
}

// SaveLookup writes a lookup or research result to path.
func SaveLookup(path, format string, res LookupResult) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatText:
		data = []byte(res.Answer + "\n")
	case FormatMarkdown:
		data = []byte(lookupMarkdown(res))
	case FormatJSON:
		data, err = json.MarshalIndent(res, "", "  ")
	case FormatCSV:
		rows := [][]string{{"label", "text"}}
		for _, b := range res.Knowledge {
			rows = append(rows, []string{b.Label, b.Text})
		}
		rows = append(rows, []string{"Answer", res.Answer})
		data, err = encodeCSV(rows)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s output: %w", format, err)
	}
	return writeFile(path, data)
}

// SaveReport writes a PERA report to path.
func SaveReport(path, format string, r Report) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatText, FormatMarkdown:
		data = []byte(reportMarkdown(r))
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatCSV:
		rows := [][]string{{"tool", "query", "success", "confidence", "data", "error"}}
		for _, f := range r.Findings {
			rows = append(rows, []string{
				string(f.Tool), f.Query, strconv.FormatBool(f.Success),
				strconv.FormatFloat(f.Confidence, 'f', 2, 64), f.Data, f.Error,
			})
		}
		data, err = encodeCSV(rows)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s output: %w", format, err)
	}
	return writeFile(path, data)
}

func lookupMarkdown(res LookupResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", res.Subject)
	fmt.Fprintf(&sb, "**Question:** %s\n\n", res.Question)
	sb.WriteString(res.Answer)
	sb.WriteString("\n\n## Sources\n")
	for _, b := range res.Knowledge {
		if b.Label == LabelInitial {
			sb.WriteString("\n### Initial knowledge\n")
		} else {
			fmt.Fprintf(&sb, "\n### Deep dive: %s\n", b.Topic())
		}
		sb.WriteString(b.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ReportMarkdown renders a PERA report for humans.
func ReportMarkdown(r Report) string { return reportMarkdown(r) }

func reportMarkdown(r Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Investigation: %s\n\n", r.Objective)
	fmt.Fprintf(&sb, "- Cycles: %d\n", r.TotalCycles)
	fmt.Fprintf(&sb, "- Findings: %d (%d successful)\n", r.TotalFindings, r.SuccessfulFindings)
	fmt.Fprintf(&sb, "- Final confidence: %.2f\n", r.FinalConfidence)
	fmt.Fprintf(&sb, "- Stop reason: %s\n", r.StopReason)
	for i, f := range r.Findings {
		fmt.Fprintf(&sb, "\n## Finding %d: %s (%s)\n\n", i+1, f.Query, f.Tool)
		if f.Success {
			sb.WriteString(f.Data)
		} else {
			fmt.Fprintf(&sb, "_Failed: %s_", f.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
