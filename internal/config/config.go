// =============================================================================
// CFE XML Extractor - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Everything has a working
// default, so the extractor runs without any config file at all; a YAML file
// only needs to list what differs.
//
// CONFIGURATION SOURCES (later ones win):
//   1. Built-in defaults
//   2. The YAML file passed with --config (config.yaml by default)
//   3. A .env file next to the working directory, then the process
//      environment, for directory credentials:
//        CFE_ODOO_URL, CFE_ODOO_DATABASE, CFE_ODOO_USERNAME, CFE_ODOO_PASSWORD
//        CFE_POSTGRES_DSN
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Directory backends.
const (
	DirectoryOdoo     = "odoo"
	DirectoryPostgres = "postgres"
	DirectoryFile     = "file"
)

// Counterparty matching modes.
const (
	MatchByTaxID = "tax_id"
	MatchByName  = "name"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where archives are looked up when a relative path is given.
	// Default: "."
	InputDir string `yaml:"input_dir"`

	// OutputDir is where spreadsheets and summary logs are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// OutputNameFormat names the dataset spreadsheet.
	// Placeholders:
	//   {rut}  - first non-empty recipient tax id, or SIN_RUT
	//   {from} - earliest issue month as MMYYYY, or XXXX
	//   {to}   - latest issue month as MMYYYY, or XXXX
	//   {uuid} - the run id
	// Default: "ReporteXML_{rut}_{from}_{to}.xlsx"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat: "text" or "json". Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// Workers is the number of documents parsed concurrently.
	// Output order always follows the archive. Default: 1
	Workers int `yaml:"workers"`

	Classification ClassificationConfig `yaml:"classification"`
	Export         ExportConfig         `yaml:"export"`
	Directory      DirectoryConfig      `yaml:"directory"`
}

// ClassificationConfig lists the path fragments that mark document roles.
// Matching is case-insensitive; received markers are checked first.
type ClassificationConfig struct {
	ReceivedMarkers []string `yaml:"received_markers"`
	IssuedMarkers   []string `yaml:"issued_markers"`
}

// ExportConfig controls the dataset spreadsheet.
type ExportConfig struct {
	// ExtraItemFields are item tag names appended as extra columns,
	// e.g. ["CodItem", "UniMed", "DescuentoMonto"].
	ExtraItemFields []string `yaml:"extra_item_fields"`

	// SheetName of the line-item sheet. Default: "Lineas"
	SheetName string `yaml:"sheet_name"`
}

// DirectoryConfig selects and configures the external party directory.
type DirectoryConfig struct {
	// Kind is "odoo", "postgres" or "file". Empty disables reconciliation.
	Kind string `yaml:"kind"`

	// MatchBy is "tax_id" or "name". Default: "tax_id"
	MatchBy string `yaml:"match_by"`

	// Timeout bounds each directory call. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Odoo     OdooConfig     `yaml:"odoo"`
	Postgres PostgresConfig `yaml:"postgres"`
	File     FileConfig     `yaml:"file"`
}

// OdooConfig holds JSON-RPC connection parameters.
type OdooConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PostgresConfig holds connection parameters for reading the directory
// straight from the ERP database.
type PostgresConfig struct {
	DSN         string        `yaml:"dsn"`
	MaxConns    int32         `yaml:"max_conns"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// FileConfig points at a local directory export (.yaml, .csv or .xlsx).
type FileConfig struct {
	Path string `yaml:"path"`

	// Delimiter and Encoding apply to CSV exports only.
	// Defaults: "auto" and "utf-8"
	Delimiter string `yaml:"delimiter"`
	Encoding  string `yaml:"encoding"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// LoadMainConfig loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. A missing file is not
//     an error; defaults are used instead.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional, and never overrides variables already exported.
	_ = godotenv.Load()
	applyEnvOverrides(&config)

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides copies directory credentials from the environment.
func applyEnvOverrides(config *MainConfig) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CFE_ODOO_URL", &config.Directory.Odoo.URL},
		{"CFE_ODOO_DATABASE", &config.Directory.Odoo.Database},
		{"CFE_ODOO_USERNAME", &config.Directory.Odoo.Username},
		{"CFE_ODOO_PASSWORD", &config.Directory.Odoo.Password},
		{"CFE_POSTGRES_DSN", &config.Directory.Postgres.DSN},
	}

	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok && value != "" {
			*o.target = value
		}
	}
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "."
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "ReporteXML_{rut}_{from}_{to}.xlsx"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if len(config.Classification.ReceivedMarkers) == 0 {
		config.Classification.ReceivedMarkers = []string{"recibidos"}
	}
	if len(config.Classification.IssuedMarkers) == 0 {
		config.Classification.IssuedMarkers = []string{"emitidos"}
	}
	if config.Export.SheetName == "" {
		config.Export.SheetName = "Lineas"
	}
	if config.Directory.MatchBy == "" {
		config.Directory.MatchBy = MatchByTaxID
	}
	if config.Directory.Timeout == 0 {
		config.Directory.Timeout = 30 * time.Second
	}
	if config.Directory.Postgres.MaxConns == 0 {
		config.Directory.Postgres.MaxConns = 4
	}
	if config.Directory.Postgres.DialTimeout == 0 {
		config.Directory.Postgres.DialTimeout = 10 * time.Second
	}
}

// validateMainConfig checks enumerated settings.
// Backend credentials are checked when the directory is opened, so extraction
// never fails because of a half-configured directory.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", config.LogFormat)
	}

	switch config.Directory.Kind {
	case "", DirectoryOdoo, DirectoryPostgres, DirectoryFile:
	default:
		return fmt.Errorf("directory.kind must be odoo, postgres or file, got %q", config.Directory.Kind)
	}

	switch config.Directory.MatchBy {
	case MatchByTaxID, MatchByName:
	default:
		return fmt.Errorf("directory.match_by must be tax_id or name, got %q", config.Directory.MatchBy)
	}

	for _, markers := range [][]string{config.Classification.ReceivedMarkers, config.Classification.IssuedMarkers} {
		for _, marker := range markers {
			if strings.TrimSpace(marker) == "" {
				return errors.New("classification markers must not be blank")
			}
		}
	}

	return nil
}
