// =============================================================================
// CFE XML Extractor - XLSX Report Writer
// =============================================================================
//
// This module writes the consolidated dataset and reconciliation results as
// XLSX workbooks.
//
// DATASET WORKBOOK:
//   Sheet "Lineas" (configurable) : one row per line item
//   Sheet "Resumen"               : batch counters, per-currency totals and
//                                   the documents that produced no rows
//
// RECONCILIATION WORKBOOK:
//   Sheet "Sin Coincidencia"      : observed counterparties missing from the
//                                   directory
//
// COLUMN LAYOUT:
//   The dataset columns follow the fixed list in datasetColumns. Generic item
//   fields named in export.extra_item_fields are appended after them, read
//   from each row's item field map.
//
// =============================================================================

package xlsxreport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/batch"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/reconcile"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
)

// =============================================================================
// SHEET AND COLUMN NAMES
// =============================================================================

const (
	// DefaultSheetName is the line item sheet when none is configured.
	DefaultSheetName = "Lineas"

	// SummarySheetName holds counters and totals.
	SummarySheetName = "Resumen"

	// UnmatchedSheetName holds the reconciliation result.
	UnmatchedSheetName = "Sin Coincidencia"

	noCurrency = "(sin moneda)"
)

// column is one fixed dataset column.
type column struct {
	header string
	width  float64
	value  func(r *types.Row) any
}

var datasetColumns = []column{
	{"DocKey", 40, func(r *types.Row) any { return r.DocKey }},
	{"Archivo", 30, func(r *types.Row) any { return r.Source }},
	{"RUT Emisor", 14, func(r *types.Row) any { return r.IssuerTaxID }},
	{"Razón Social", 30, func(r *types.Row) any { return r.IssuerName }},
	{"RUT Receptor", 14, func(r *types.Row) any { return r.RecipientTaxID }},
	{"Razón Social Receptor", 30, func(r *types.Row) any { return r.RecipientName }},
	{"Serie", 8, func(r *types.Row) any { return r.Series }},
	{"Nro", 10, func(r *types.Row) any { return r.Number }},
	{"Fch Emisión", 12, func(r *types.Row) any { return r.IssueDate }},
	{"Fch Vencimiento", 12, func(r *types.Row) any { return r.DueDate }},
	{"Moneda", 8, func(r *types.Row) any { return r.Currency }},
	{"Tipo CFE", 8, func(r *types.Row) any { return r.DocType }},
	{"Rol", 10, func(r *types.Row) any { return RoleLabel(r.Role) }},
	{"Empresa", 14, func(r *types.Row) any { return r.CompanyTaxID }},
	{"Línea", 6, func(r *types.Row) any { return r.Line }},
	{"Descripción", 40, func(r *types.Row) any { return r.Description }},
	{"Cant.", 10, func(r *types.Row) any { return r.Quantity }},
	{"Precio Unit.", 12, func(r *types.Row) any { return r.UnitPrice }},
	{"Cod. IVA", 8, func(r *types.Row) any { return r.TaxCode }},
	{"Tasa IVA", 20, func(r *types.Row) any { return r.TaxLabel }},
	{"Neto", 14, func(r *types.Row) any { return r.Net }},
	{"Monto IVA", 14, func(r *types.Row) any { return r.Tax }},
	{"Total Línea", 14, func(r *types.Row) any { return r.Total }},
	{"Adenda", 50, func(r *types.Row) any { return r.Addendum }},
}

var roleLabels = map[types.Role]string{
	types.RoleIssued:   "Emitido",
	types.RoleReceived: "Recibido",
	types.RoleUnknown:  "Desconocido",
}

// RoleLabel returns the Spanish label shown in the Rol column.
func RoleLabel(role types.Role) string {
	if label, ok := roleLabels[role]; ok {
		return label
	}
	return roleLabels[types.RoleUnknown]
}

// DatasetHeaders returns the header row for the given extra item fields.
func DatasetHeaders(extraFields []string) []string {
	headers := make([]string, 0, len(datasetColumns)+len(extraFields))
	for _, c := range datasetColumns {
		headers = append(headers, c.header)
	}
	return append(headers, extraFields...)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls the dataset workbook layout.
type Options struct {
	// SheetName names the line item sheet. Default: "Lineas"
	SheetName string

	// ExtraItemFields are item tags appended as extra columns.
	ExtraItemFields []string
}

// =============================================================================
// DATASET WORKBOOK
// =============================================================================

// WriteDataset writes the dataset workbook for result to w.
func WriteDataset(w io.Writer, result *batch.Result, opts Options) error {
	book, err := buildDataset(result, opts)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// SaveDataset writes the dataset workbook to path, creating parent
// directories as needed.
func SaveDataset(path string, result *batch.Result, opts Options) error {
	return save(path, func(w io.Writer) error { return WriteDataset(w, result, opts) })
}

func buildDataset(result *batch.Result, opts Options) (*excelize.File, error) {
	if result == nil {
		return nil, fmt.Errorf("no dataset to write")
	}
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if sheet == SummarySheetName {
		return nil, fmt.Errorf("sheet name %q is reserved", sheet)
	}

	book := excelize.NewFile()
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeLines(book, sheet, result.Rows, opts.ExtraItemFields); err != nil {
		book.Close()
		return nil, err
	}
	if err := writeSummary(book, result); err != nil {
		book.Close()
		return nil, err
	}

	index, _ := book.GetSheetIndex(sheet)
	book.SetActiveSheet(index)
	return book, nil
}

func writeLines(book *excelize.File, sheet string, rows []types.Row, extraFields []string) error {
	if err := writeHeader(book, sheet, DatasetHeaders(extraFields)); err != nil {
		return err
	}

	values := make([]any, len(datasetColumns)+len(extraFields))
	for i := range rows {
		row := &rows[i]
		for c, col := range datasetColumns {
			values[c] = col.value(row)
		}
		for e, field := range extraFields {
			values[len(datasetColumns)+e] = row.Item.Value(field)
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for c, col := range datasetColumns {
		name, _ := excelize.ColumnNumberToName(c + 1)
		_ = book.SetColWidth(sheet, name, name, col.width)
	}
	return nil
}

// currencyTotals accumulates amounts without float drift.
type currencyTotals struct {
	documents map[string]struct{}
	lines     int
	net       decimal.Decimal
	tax       decimal.Decimal
	total     decimal.Decimal
}

func accumulate(rows []types.Row) map[string]*currencyTotals {
	totals := make(map[string]*currencyTotals)
	for i := range rows {
		r := &rows[i]
		currency := r.Currency
		if currency == "" {
			currency = noCurrency
		}
		t, ok := totals[currency]
		if !ok {
			t = &currencyTotals{documents: make(map[string]struct{})}
			totals[currency] = t
		}
		t.documents[r.DocKey] = struct{}{}
		t.lines++
		t.net = t.net.Add(decimal.NewFromFloat(r.Net))
		t.tax = t.tax.Add(decimal.NewFromFloat(r.Tax))
		t.total = t.total.Add(decimal.NewFromFloat(r.Total))
	}
	return totals
}

func writeSummary(book *excelize.File, result *batch.Result) error {
	const sheet = SummarySheetName
	if _, err := book.NewSheet(sheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	stats := result.Stats
	rowNum := 1
	put := func(values ...any) error {
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		rowNum++
		return book.SetSheetRow(sheet, cell, &values)
	}

	counters := [][]any{
		{"Documentos XML", stats.Documents},
		{"Con líneas", stats.WithRows},
		{"Sin líneas", stats.WithoutRows},
		{"Malformados", stats.Malformed},
		{"Otros archivos omitidos", stats.Skipped},
		{"Líneas", stats.Rows},
	}
	if err := writeHeader(book, sheet, []string{"Indicador", "Valor"}); err != nil {
		return err
	}
	rowNum = 2
	for _, c := range counters {
		if err := put(c...); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	// Per-currency totals.
	rowNum++
	if err := writeHeaderAt(book, sheet, rowNum, []string{"Moneda", "Documentos", "Líneas", "Neto", "Monto IVA", "Total"}); err != nil {
		return err
	}
	rowNum++
	totals := accumulate(result.Rows)
	currencies := make([]string, 0, len(totals))
	for currency := range totals {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	for _, currency := range currencies {
		t := totals[currency]
		err := put(currency, len(t.documents), t.lines,
			t.net.Round(2).InexactFloat64(),
			t.tax.Round(2).InexactFloat64(),
			t.total.Round(2).InexactFloat64())
		if err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}

	// Documents without rows.
	rowNum++
	if err := writeHeaderAt(book, sheet, rowNum, []string{"Archivo sin líneas", "Rol", "Estado", "Detalle"}); err != nil {
		return err
	}
	rowNum++
	for _, doc := range result.Documents {
		if doc.Status == batch.StatusExtracted {
			continue
		}
		detail := ""
		if doc.Error != nil {
			detail = doc.Error.Error()
		}
		if err := put(doc.Name, RoleLabel(doc.Role), string(doc.Status), detail); err != nil {
			return fmt.Errorf("write documents: %w", err)
		}
	}

	_ = book.SetColWidth(sheet, "A", "A", 32)
	_ = book.SetColWidth(sheet, "B", "F", 14)
	return nil
}

// =============================================================================
// RECONCILIATION WORKBOOK
// =============================================================================

// WriteReconciliation writes the unmatched counterparties of report to w.
func WriteReconciliation(w io.Writer, report *reconcile.Report) error {
	if report == nil {
		return fmt.Errorf("no reconciliation report to write")
	}

	book := excelize.NewFile()
	defer book.Close()

	const sheet = UnmatchedSheetName
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeHeader(book, sheet, []string{"Empresa", "RUT Contraparte", "Razón Social", "Documentos"}); err != nil {
		return err
	}
	for i, party := range report.Unmatched {
		values := []any{report.Company.TaxID, party.TaxID, party.Name, party.Documents}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = book.SetColWidth(sheet, "A", "B", 16)
	_ = book.SetColWidth(sheet, "C", "C", 40)
	_ = book.SetColWidth(sheet, "D", "D", 12)

	if err := book.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// SaveReconciliation writes the reconciliation workbook to path.
func SaveReconciliation(path string, report *reconcile.Report) error {
	return save(path, func(w io.Writer) error { return WriteReconciliation(w, report) })
}

// =============================================================================
// HELPERS
// =============================================================================

func writeHeader(book *excelize.File, sheet string, headers []string) error {
	if err := writeHeaderAt(book, sheet, 1, headers); err != nil {
		return err
	}
	return book.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeHeaderAt(book *excelize.File, sheet string, row int, headers []string) error {
	style, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(headers), row)
	if err := book.SetSheetRow(sheet, first, &cells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return book.SetCellStyle(sheet, first, last, style)
}

// save writes to a temporary file in the target directory and renames it
// into place.
func save(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cfe-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
