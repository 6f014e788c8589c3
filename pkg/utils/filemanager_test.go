package utils

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/batch"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
)

func resultWith(headers ...types.Header) *batch.Result {
	result := &batch.Result{}
	for _, h := range headers {
		result.Rows = append(result.Rows, types.Row{Header: h})
	}
	return result
}

func TestDatasetParams(t *testing.T) {
	tests := []struct {
		name   string
		result *batch.Result
		want   map[string]string
	}{
		{
			name:   "nil result",
			result: nil,
			want:   map[string]string{"rut": NoTaxID, "from": NoPeriod, "to": NoPeriod},
		},
		{
			name:   "no recipient and unparseable dates",
			result: resultWith(types.Header{IssueDate: "ayer"}),
			want:   map[string]string{"rut": NoTaxID, "from": NoPeriod, "to": NoPeriod},
		},
		{
			name: "first recipient and month range",
			result: resultWith(
				types.Header{IssueDate: "2024-03-15"},
				types.Header{RecipientTaxID: "219999990019", IssueDate: "2024-01-31"},
				types.Header{RecipientTaxID: "210000000012", IssueDate: "2023-12-01"},
			),
			want: map[string]string{"rut": "219999990019", "from": "122023", "to": "032024"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DatasetParams(tt.result); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DatasetParams() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		name   string
		format string
		params map[string]string
		want   string
	}{
		{
			name:   "default format",
			format: "ReporteXML_{rut}_{from}_{to}.xlsx",
			params: map[string]string{"rut": "219999990019", "from": "012024", "to": "032024"},
			want:   "ReporteXML_219999990019_012024_032024.xlsx",
		},
		{
			name:   "missing extension",
			format: "Conciliacion_{company}",
			params: map[string]string{"company": "219999990019"},
			want:   "Conciliacion_219999990019.xlsx",
		},
		{
			name:   "separators in values",
			format: "ReporteXML_{rut}.XLSX",
			params: map[string]string{"rut": "21/99"},
			want:   "ReporteXML_21_99.XLSX",
		},
		{
			name:   "value that looks like a placeholder",
			format: "R_{rut}",
			params: map[string]string{"rut": "{date}"},
			want:   "R_{date}.xlsx",
		},
		{
			name:   "values referencing each other",
			format: "{from}-{to}",
			params: map[string]string{"from": "{to}", "to": "{from}"},
			want:   "{to}-{from}.xlsx",
		},
		{
			name:   "param overrides built in",
			format: "R_{date}",
			params: map[string]string{"date": "hoy"},
			want:   "R_hoy.xlsx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateOutputFileName(tt.format, tt.params); got != tt.want {
				t.Errorf("GenerateOutputFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateOutputFileNameUUID(t *testing.T) {
	got := GenerateOutputFileName("lote_{uuid}", nil)
	if strings.Contains(got, "{uuid}") || len(got) != len("lote_")+36+len(".xlsx") {
		t.Errorf("GenerateOutputFileName() = %q", got)
	}
}

func TestWriteSummaryLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	summary := ProcessingSummary{
		RunID:      "run-1",
		Input:      "lote.zip",
		OutputFile: "ReporteXML_SIN_RUT_XXXX_XXXX.xlsx",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Second),
		Result: &batch.Result{
			Documents: []batch.DocumentResult{
				{Name: "ok.xml", Status: batch.StatusExtracted, Rows: 2},
				{Name: "vacio.xml", Status: batch.StatusEmpty},
				{Name: "roto.xml", Status: batch.StatusMalformed, Error: errors.New("XML syntax error")},
			},
			Stats: batch.Stats{Documents: 3, WithRows: 1, WithoutRows: 2, Empty: 1, Malformed: 1, Rows: 2},
		},
	}

	path, err := WriteSummaryLog(summary, dir)
	if err != nil {
		t.Fatalf("WriteSummaryLog() error = %v", err)
	}
	if filepath.Base(path) != "processing_summary_20240301_100000.txt" {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"run-1", "Without Rows:       2", "vacio.xml", "roto.xml", "XML syntax error"} {
		if !strings.Contains(content, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	if strings.Contains(content, "File:   ok.xml") {
		t.Error("summary lists a document that produced rows")
	}
}

func TestWriteSummaryLogRequiresResult(t *testing.T) {
	if _, err := WriteSummaryLog(ProcessingSummary{}, t.TempDir()); err == nil {
		t.Error("WriteSummaryLog() expected error")
	}
}
