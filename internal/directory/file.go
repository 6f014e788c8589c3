package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/csvparser"
)

// File is a directory loaded from a local export. It is useful offline and
// when the ERP can only hand over a spreadsheet.
//
// YAML layout:
//
//	companies:
//	  - tax_id: "219999990019"
//	    name: Compradora SRL
//	    counterparties:
//	      - {tax_id: "210000000012", name: Proveedora SA}
//	shared:
//	  - {tax_id: "211111110011", name: Shared Supplier}
//
// CSV and XLSX layout: a header row with company_tax_id, tax_id and name
// columns (any order, case-insensitive). Rows with an empty company_tax_id
// are shared by every company. CSV delimiter and encoding come from
// directory.file in the configuration.
type File struct {
	companies map[string]*fileCompany
	shared    []Entry
}

type fileCompany struct {
	ref     CompanyRef
	entries []Entry
}

type yamlEntry struct {
	TaxID string `yaml:"tax_id"`
	Name  string `yaml:"name"`
}

type yamlDirectory struct {
	Companies []struct {
		TaxID          string      `yaml:"tax_id"`
		Name           string      `yaml:"name"`
		Counterparties []yamlEntry `yaml:"counterparties"`
	} `yaml:"companies"`
	Shared []yamlEntry `yaml:"shared"`
}

func newFile() *File {
	return &File{companies: make(map[string]*fileCompany)}
}

// LoadFile reads a .yaml/.yml, .csv or .xlsx directory export using
// auto-detected CSV settings.
func LoadFile(path string) (*File, error) {
	return LoadFileConfig(config.FileConfig{Path: path})
}

// LoadFileConfig reads the directory export described by cfg.
func LoadFileConfig(cfg config.FileConfig) (*File, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("file directory requires a path")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".csv":
		return loadCSV(path, csvparser.Settings{Delimiter: cfg.Delimiter, Encoding: cfg.Encoding})
	case ".xlsx":
		return loadXLSX(path)
	}
	return nil, fmt.Errorf("unsupported directory file %s (want .yaml, .csv or .xlsx)", path)
}

// ResolveCompany looks taxID up among the listed companies.
func (f *File) ResolveCompany(_ context.Context, taxID string) (CompanyRef, error) {
	company, ok := f.companies[strings.TrimSpace(taxID)]
	if !ok {
		return CompanyRef{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, taxID)
	}
	return company.ref, nil
}

// ListCounterparties returns the company's own entries followed by the
// shared ones.
func (f *File) ListCounterparties(_ context.Context, company CompanyRef) ([]Entry, error) {
	c, ok := f.companies[company.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, company.ID)
	}
	out := make([]Entry, 0, len(c.entries)+len(f.shared))
	out = append(out, c.entries...)
	out = append(out, f.shared...)
	return out, nil
}

// company returns the record for taxID, creating it on first use.
func (f *File) company(taxID, name string) *fileCompany {
	c, ok := f.companies[taxID]
	if !ok {
		c = &fileCompany{ref: CompanyRef{ID: taxID, TaxID: taxID}}
		f.companies[taxID] = c
	}
	if c.ref.Name == "" {
		c.ref.Name = name
	}
	return c
}

// =============================================================================
// LOADERS
// =============================================================================

func loadYAML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	var doc yamlDirectory
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse directory file: %w", err)
	}

	f := newFile()
	for _, c := range doc.Companies {
		taxID := strings.TrimSpace(c.TaxID)
		if taxID == "" {
			return nil, fmt.Errorf("directory company %q has no tax_id", c.Name)
		}
		company := f.company(taxID, strings.TrimSpace(c.Name))
		for _, e := range c.Counterparties {
			company.entries = append(company.entries, Entry{TaxID: strings.TrimSpace(e.TaxID), Name: strings.TrimSpace(e.Name)})
		}
	}
	for _, e := range doc.Shared {
		f.shared = append(f.shared, Entry{TaxID: strings.TrimSpace(e.TaxID), Name: strings.TrimSpace(e.Name)})
	}
	return f, nil
}

func loadCSV(path string, settings csvparser.Settings) (*File, error) {
	table, err := csvparser.ReadFile(path, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory CSV: %w", err)
	}
	return fromTable(append([][]string{table.Headers}, table.Rows...))
}

func loadXLSX(path string) (*File, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("directory workbook %s has no sheets", path)
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read directory sheet: %w", err)
	}
	return fromTable(rows)
}

// fromTable builds a File from a header row plus data rows.
func fromTable(rows [][]string) (*File, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("directory table is empty")
	}

	columns := map[string]int{"company_tax_id": -1, "tax_id": -1, "name": -1}
	for i, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if _, ok := columns[key]; ok {
			columns[key] = i
		}
	}
	for name, idx := range columns {
		if idx < 0 {
			return nil, fmt.Errorf("directory table is missing the %s column", name)
		}
	}

	cell := func(row []string, column string) string {
		idx := columns[column]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	f := newFile()
	for _, row := range rows[1:] {
		owner := cell(row, "company_tax_id")
		entry := Entry{TaxID: cell(row, "tax_id"), Name: cell(row, "name")}

		// A row with only the owner registers a company with no counterparties.
		var company *fileCompany
		if owner != "" {
			company = f.company(owner, "")
		}
		if entry.TaxID == "" && entry.Name == "" {
			continue
		}
		if company == nil {
			f.shared = append(f.shared, entry)
			continue
		}
		company.entries = append(company.entries, entry)
	}
	return f, nil
}
