package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/directory"
)

const sampleInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<ns0:CFE xmlns:ns0="http://cfe.dgi.gub.uy"><ns0:eFact><ns0:Encabezado>
<ns0:IdDoc><ns0:TipoCFE>111</ns0:TipoCFE><ns0:Serie>A</ns0:Serie><ns0:Nro>7</ns0:Nro><ns0:FchEmis>2024-02-10</ns0:FchEmis></ns0:IdDoc>
<ns0:Emisor><ns0:RUCEmisor>210000000012</ns0:RUCEmisor><ns0:RznSoc>Proveedora SA</ns0:RznSoc></ns0:Emisor>
<ns0:Receptor><ns0:DocRecep>219999990019</ns0:DocRecep></ns0:Receptor>
</ns0:Encabezado><ns0:Detalle><ns0:Item><ns0:NroLinDet>1</ns0:NroLinDet><ns0:NomItem>Servicio</ns0:NomItem><ns0:MontoItem>100</ns0:MontoItem></ns0:Item></ns0:Detalle></ns0:eFact></ns0:CFE>`

// workspace creates a batch folder and chdirs into a fresh temp dir.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	files := map[string]string{
		"in/recibidos/a.xml": sampleInvoice,
		"in/recibidos/b.xml": "<CFE><Encabezado>",
		"in/leame.txt":       "ignored",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	dir := workspace(t)
	outPath := filepath.Join(dir, "out", "dataset.xlsx")

	out, err := execute(t, "extract", "in", "--config", "missing.yaml", "--out", outPath, "--dry-run=false")
	if err != nil {
		t.Fatalf("extract error = %v\n%s", err, out)
	}

	for _, want := range []string{"XML documents:   2", "With rows:       1", "malformed: 1", "Dataset written to"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	book, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("dataset not written: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Lineas")
	if err != nil || len(rows) != 2 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}

	logs, _ := filepath.Glob(filepath.Join(dir, "out", "processing_summary_*.txt"))
	if len(logs) != 1 {
		t.Errorf("summary logs = %v", logs)
	}
}

func TestExtractDefaultName(t *testing.T) {
	dir := workspace(t)

	if _, err := execute(t, "extract", "in", "--config", "missing.yaml", "--out", "", "--dry-run=false"); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "output", "ReporteXML_219999990019_022024_022024.xlsx")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s: %v", want, err)
	}
}

func TestExtractDryRun(t *testing.T) {
	dir := workspace(t)

	if _, err := execute(t, "extract", "in", "--config", "missing.yaml", "--out", "", "--dry-run"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run wrote output: %v", err)
	}
}

func TestReconcileCommand(t *testing.T) {
	dir := workspace(t)

	directoryYAML := `companies:
  - tax_id: "219999990019"
    name: Compradora SRL
`
	configYAML := `directory:
  kind: file
  file:
    path: directory.yaml
`
	if err := os.WriteFile(filepath.Join(dir, "directory.yaml"), []byte(directoryYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "conciliacion.xlsx")
	out, err := execute(t, "reconcile", "in", "--config", "config.yaml", "--company", "219999990019", "--out", outPath, "--match-by", "tax_id")
	if err != nil {
		t.Fatalf("reconcile error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Unmatched:               1") {
		t.Errorf("output:\n%s", out)
	}

	book, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer book.Close()
	rows, _ := book.GetRows("Sin Coincidencia")
	if len(rows) != 2 || rows[1][1] != "210000000012" {
		t.Errorf("rows = %v", rows)
	}

	_, err = execute(t, "reconcile", "in", "--config", "config.yaml", "--company", "111111110011", "--out", outPath, "--match-by", "tax_id")
	if !errors.Is(err, directory.ErrCompanyNotFound) {
		t.Errorf("unknown company error = %v, want ErrCompanyNotFound", err)
	}
}

func TestReconcileWithoutDirectory(t *testing.T) {
	workspace(t)

	_, err := execute(t, "reconcile", "in", "--config", "missing.yaml", "--company", "219999990019", "--out", "x.xlsx", "--match-by", "")
	if err == nil || !strings.Contains(err.Error(), "no directory configured") {
		t.Errorf("error = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Version:    "+Version) {
		t.Errorf("output = %q", out)
	}
}
