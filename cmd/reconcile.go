// =============================================================================
// CFE XML Extractor - Reconcile Command
// =============================================================================
//
// COMMAND USAGE:
//   cfe reconcile [archive|folder] --company <rut> [flags]
//
// FLAGS:
//   --company  : Tax id of the owning company (required)
//   --out      : Output spreadsheet path
//                (default: output_dir/Conciliacion_{company}_{from}_{to}.xlsx)
//   --match-by : Override directory.match_by ("tax_id" or "name")
//
// PROCESSING PIPELINE:
//   1. Extract the batch exactly like 'cfe extract'
//   2. Open the configured party directory behind a per-run cache
//   3. Report counterparties of the company that the directory does not know
//   4. Write the unmatched list as XLSX
//
// A company that is missing from the directory exits with status 2.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/directory"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/reconcile"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/xlsxreport"
	"github.com/ginjaninja78/cfe-xml-extractor/pkg/logger"
	"github.com/ginjaninja78/cfe-xml-extractor/pkg/utils"
)

const reconciliationNameFormat = "Conciliacion_{company}_{from}_{to}.xlsx"

var (
	reconcileCompany string
	reconcileOut     string
	reconcileMatchBy string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [archive|folder] --company <rut>",
	Short: "List counterparties of a company that the party directory does not know",
	Long: `The reconcile command extracts the batch, keeps the documents owned by the
given company (received documents addressed to it, issued documents sent by
it) and compares their counterparties with the party directory configured
under 'directory' in config.yaml.

The counterparties that are not registered are written to an XLSX file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd.Context(), cmd.OutOrStdout(), inputArg(args))
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&reconcileCompany, "company", "c", "", "Tax id (RUT) of the owning company")
	reconcileCmd.Flags().StringVarP(&reconcileOut, "out", "o", "", "Output spreadsheet path")
	reconcileCmd.Flags().StringVar(&reconcileMatchBy, "match-by", "", `Match counterparties by "tax_id" or "name"`)
	reconcileCmd.MarkFlagRequired("company")
}

func runReconcile(ctx context.Context, out io.Writer, input string) error {
	result, input, err := runBatch(ctx, appConfig, input)
	if err != nil {
		return err
	}
	printSummary(out, input, result)

	dirCfg := appConfig.Directory
	if reconcileMatchBy != "" {
		dirCfg.MatchBy = reconcileMatchBy
	}

	backend, closeDir, err := directory.Open(ctx, dirCfg, logger.WithContext(ctx))
	if err != nil {
		return err
	}
	defer closeDir()

	cache := directory.NewCache(backend)
	reconciler, err := reconcile.New(cache, dirCfg.MatchBy, logger.WithContext(ctx))
	if err != nil {
		return err
	}

	report, err := reconciler.Reconcile(ctx, reconcileCompany, result.Rows)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "directory round trips", "count", cache.RoundTrips())

	fmt.Fprintf(out, "\nCompany %s (%s)\n", report.Company.TaxID, report.Company.Name)
	fmt.Fprintf(out, "  Observed counterparties: %d\n", report.Observed)
	fmt.Fprintf(out, "  Known in directory:      %d\n", report.Known)
	fmt.Fprintf(out, "  Unmatched:               %d\n", len(report.Unmatched))

	path := reconcileOut
	if path == "" {
		params := utils.DatasetParams(result)
		params["company"] = reconcileCompany
		params["uuid"] = runID
		path = filepath.Join(appConfig.OutputDir, utils.GenerateOutputFileName(reconciliationNameFormat, params))
	}
	if err := xlsxreport.SaveReconciliation(path, report); err != nil {
		return fmt.Errorf("failed to write reconciliation: %w", err)
	}

	fmt.Fprintf(out, "\nReconciliation written to %s\n", path)
	return nil
}
