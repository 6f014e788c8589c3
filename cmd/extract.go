// =============================================================================
// CFE XML Extractor - Extract Command
// =============================================================================
//
// COMMAND USAGE:
//   cfe extract [archive|folder] [flags]
//
// FLAGS:
//   --out      : Output spreadsheet path (default: output_dir + output_name_format)
//   --dry-run  : Run the batch and print the summary without writing files
//
// PROCESSING PIPELINE:
//   1. Open the zip archive or folder (input_dir when no argument is given)
//   2. Classify, parse and flatten every .xml entry
//   3. Print the batch summary
//   4. Write the XLSX dataset and a processing summary log
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/batch"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/converter"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/xlsxreport"
	"github.com/ginjaninja78/cfe-xml-extractor/pkg/logger"
	"github.com/ginjaninja78/cfe-xml-extractor/pkg/utils"
)

var (
	extractOut    string
	extractDryRun bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [archive|folder]",
	Short: "Extract every invoice line of a CFE batch into an XLSX dataset",
	Long: `The extract command reads every .xml entry of a zip archive or folder,
classifies it as issued or received from its path, and flattens each invoice
line into one spreadsheet row together with its document header.

Documents that cannot be parsed are counted and listed in the summary; they
never stop the batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.Context(), cmd.OutOrStdout(), inputArg(args))
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Output spreadsheet path")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "Print the summary without writing files")
}

func runExtract(ctx context.Context, out io.Writer, input string) error {
	start := time.Now()

	result, input, err := runBatch(ctx, appConfig, input)
	if err != nil {
		return err
	}
	printSummary(out, input, result)

	if extractDryRun {
		logger.Info(ctx, "dry run, no files written")
		return nil
	}

	path := extractOut
	if path == "" {
		params := utils.DatasetParams(result)
		params["uuid"] = runID
		path = filepath.Join(appConfig.OutputDir, utils.GenerateOutputFileName(appConfig.OutputNameFormat, params))
	}
	if utils.FileExists(path) {
		logger.Warn(ctx, "overwriting existing output", "path", path)
	}

	opts := xlsxreport.Options{
		SheetName:       appConfig.Export.SheetName,
		ExtraItemFields: appConfig.Export.ExtraItemFields,
	}
	if err := xlsxreport.SaveDataset(path, result, opts); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	summaryPath, err := utils.WriteSummaryLog(utils.ProcessingSummary{
		RunID:      runID,
		Input:      input,
		OutputFile: path,
		StartTime:  start,
		EndTime:    time.Now(),
		Result:     result,
	}, filepath.Dir(path))
	if err != nil {
		// The dataset is already on disk.
		logger.Warn(ctx, "failed to write summary log", "error", err)
	}

	fmt.Fprintf(out, "\nDataset written to %s\n", path)
	if summaryPath != "" {
		fmt.Fprintf(out, "Summary written to %s\n", summaryPath)
	}
	return nil
}

// =============================================================================
// SHARED BATCH HELPERS
// =============================================================================

func inputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// resolveInput picks the path to open. An empty argument means input_dir.
// A relative path that does not exist is looked up under input_dir.
func resolveInput(cfg *config.MainConfig, input string) (string, error) {
	if input == "" {
		if cfg.InputDir == "" {
			return "", fmt.Errorf("no input given and input_dir is not configured")
		}
		return cfg.InputDir, nil
	}
	if filepath.IsAbs(input) || utils.FileExists(input) || cfg.InputDir == "" {
		return input, nil
	}
	if candidate := filepath.Join(cfg.InputDir, input); utils.FileExists(candidate) {
		return candidate, nil
	}
	return input, nil
}

// runBatch opens input and extracts every document. It returns the resolved
// input path alongside the dataset.
func runBatch(ctx context.Context, cfg *config.MainConfig, input string) (*batch.Result, string, error) {
	path, err := resolveInput(cfg, input)
	if err != nil {
		return nil, "", err
	}
	ctx = logger.WithSource(ctx, path)

	src, err := batch.Open(path)
	if err != nil {
		return nil, path, err
	}
	defer src.Close()

	log := logger.WithContext(ctx)
	classifier := converter.NewClassifier(cfg.Classification.ReceivedMarkers, cfg.Classification.IssuedMarkers)
	aggregator := batch.New(classifier, converter.New(log), cfg.Workers, log)

	result, err := aggregator.Run(ctx, src)
	if err != nil {
		return nil, path, fmt.Errorf("batch aborted: %w", err)
	}
	return result, path, nil
}

// printSummary writes the batch counters to out.
func printSummary(out io.Writer, input string, result *batch.Result) {
	stats := result.Stats
	fmt.Fprintf(out, "Processed %s\n", input)
	fmt.Fprintf(out, "  XML documents:   %d\n", stats.Documents)
	fmt.Fprintf(out, "  With rows:       %d\n", stats.WithRows)
	fmt.Fprintf(out, "  Without rows:    %d (malformed: %d)\n", stats.WithoutRows, stats.Malformed)
	fmt.Fprintf(out, "  Line item rows:  %d\n", stats.Rows)
	if companies := result.Companies(); len(companies) > 0 {
		fmt.Fprintf(out, "  Companies:       %v\n", companies)
	}
}
