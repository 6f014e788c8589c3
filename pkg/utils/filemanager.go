// =============================================================================
// CFE XML Extractor - Output File Utilities
// =============================================================================
//
// This module provides file utilities for the extractor commands:
//   - Output directory management
//   - Output file naming with placeholders
//   - Processing summary log generation
//
// OUTPUT NAMING:
//   The default name is ReporteXML_{rut}_{from}_{to}.xlsx where
//     rut  - first non-empty recipient tax id, SIN_RUT when none
//     from - MMYYYY of the earliest parseable issue date, XXXX when none
//     to   - MMYYYY of the latest parseable issue date, XXXX when none
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/batch"
)

const (
	// NoTaxID replaces {rut} when the dataset has no recipient tax id.
	NoTaxID = "SIN_RUT"

	// NoPeriod replaces {from} and {to} when no issue date parses.
	NoPeriod = "XXXX"

	periodLayout = "012006"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// DatasetParams returns the {rut}, {from} and {to} placeholder values for
// result.
func DatasetParams(result *batch.Result) map[string]string {
	params := map[string]string{
		"rut":  NoTaxID,
		"from": NoPeriod,
		"to":   NoPeriod,
	}
	if result == nil {
		return params
	}

	if rut := result.RecipientTaxID(); rut != "" {
		params["rut"] = rut
	}
	if from, to, ok := result.IssueRange(); ok {
		params["from"] = from.Format(periodLayout)
		params["to"] = to.Format(periodLayout)
	}
	return params
}

// GenerateOutputFileName generates an output file name from a format string.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {rut}       - Recipient tax id (see DatasetParams)
//               {from}      - First issue month (MMYYYY)
//               {to}        - Last issue month (MMYYYY)
//               {company}   - Owning company for reconciliation output
//   - params: A map of placeholder values.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "ReporteXML_{rut}_{from}_{to}.xlsx"
//   params: {"rut": "219999990019", "from": "012024", "to": "032024"}
//   output: "ReporteXML_219999990019_012024_032024.xlsx"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = safeComponent(value)
	}

	// One pass, so a substituted value is never expanded again.
	placeholders := make([]string, 0, len(replacements))
	for placeholder := range replacements {
		placeholders = append(placeholders, placeholder)
	}
	sort.Strings(placeholders)
	oldnew := make([]string, 0, 2*len(placeholders))
	for _, placeholder := range placeholders {
		oldnew = append(oldnew, placeholder, replacements[placeholder])
	}
	result := strings.NewReplacer(oldnew...).Replace(format)

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// safeComponent keeps placeholder values from introducing path separators.
func safeComponent(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(value))
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes one extract or reconcile run.
type ProcessingSummary struct {
	RunID      string
	Input      string
	OutputFile string
	StartTime  time.Time
	EndTime    time.Time
	Result     *batch.Result
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	if summary.Result == nil {
		return "", fmt.Errorf("summary has no batch result")
	}
	if err := EnsureDir(outputDir); err != nil {
		return "", err
	}

	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	stats := summary.Result.Stats

	fmt.Fprintf(writer, "CFE XML Extractor - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Input:          %s\n"+
		"  Output:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  XML Documents:      %d\n"+
		"  With Rows:          %d\n"+
		"  Without Rows:       %d\n"+
		"    Malformed:        %d\n"+
		"  Skipped Entries:    %d\n"+
		"  Line Item Rows:     %d\n\n",
		summary.RunID,
		summary.Input,
		summary.OutputFile,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		stats.Documents,
		stats.WithRows,
		stats.WithoutRows,
		stats.Malformed,
		stats.Skipped,
		stats.Rows)

	var without []batch.DocumentResult
	for _, doc := range summary.Result.Documents {
		if doc.Status != batch.StatusExtracted {
			without = append(without, doc)
		}
	}

	if len(without) > 0 {
		writer.WriteString("Documents Without Rows:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, doc := range without {
			fmt.Fprintf(writer, "  File:   %s\n", doc.Name)
			fmt.Fprintf(writer, "  Status: %s\n", doc.Status)
			if doc.Error != nil {
				fmt.Fprintf(writer, "  Error:  %s\n", doc.Error)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
