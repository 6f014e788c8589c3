// =============================================================================
// CFE XML Extractor - Field Translation
// =============================================================================
//
// Lookup-table translations applied to raw CFE codes while rows are built.
//
// TAX INDICATOR (IndFact):
//   The DGI item indicator tells how VAT applies to the line. Codes outside
//   the table are common (non-taxed, perceptions, ...) and are reported with
//   a catch-all label rather than treated as errors.
//
//   | Code | Label                 |
//   |------|-----------------------|
//   | 1    | Exento                |
//   | 2    | Tasa Mínima (10%)     |
//   | 3    | Tasa Básica (22%)     |
//   | 4    | Exportación           |
//   | 10   | Exportación Servicios |
//   | *    | Otros/No Grav.        |
//
// =============================================================================

package converter

import "strings"

// OtherTaxLabel is used for every indicator missing from taxLabels.
const OtherTaxLabel = "Otros/No Grav."

var taxLabels = map[string]string{
	"1":  "Exento",
	"2":  "Tasa Mínima (10%)",
	"3":  "Tasa Básica (22%)",
	"4":  "Exportación",
	"10": "Exportación Servicios",
}

// TaxLabel translates an IndFact code into its description.
func TaxLabel(code string) string {
	if label, ok := taxLabels[strings.TrimSpace(code)]; ok {
		return label
	}
	return OtherTaxLabel
}
