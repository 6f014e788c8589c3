// =============================================================================
// CFE XML Extractor - Main Entry Point
// =============================================================================
//
// USAGE:
//   cfe extract <archive|folder>                    - Write the line item dataset
//   cfe reconcile <archive|folder> --company <rut>  - List unknown counterparties
//   cfe version                                     - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : extraction, aggregation, reconciliation and export
//   - pkg/       : logging and output file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/cfe-xml-extractor/cmd"
)

func main() {
	cmd.Execute()
}
