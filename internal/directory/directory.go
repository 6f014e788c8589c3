// =============================================================================
// CFE XML Extractor - Party Directory
// =============================================================================
//
// The party directory is the authoritative list of counterparties known to
// the accounting system, scoped per company. Reconciliation needs two
// operations from it:
//
//   ResolveCompany     - tax id of the owning company -> opaque CompanyRef
//   ListCounterparties - CompanyRef -> tax ids / names visible to that
//                        company, including entries shared by all companies
//
// BACKENDS:
//   - Odoo      : JSON-RPC against res.company / res.partner
//   - Postgres  : the same tables read directly through pgx
//   - File      : a local export in YAML, CSV or XLSX
//
// Lookups are memoized by a Cache that lives for exactly one batch run.
//
// =============================================================================

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
)

// ErrCompanyNotFound is returned when the owning company's tax id is not in
// the directory. It is distinct from a company with zero counterparties.
var ErrCompanyNotFound = errors.New("company not found in directory")

// CompanyRef identifies a company inside one directory backend.
type CompanyRef struct {
	// ID is backend specific (Odoo record id, file key, ...).
	ID    string
	TaxID string
	Name  string
}

// Entry is one known counterparty.
type Entry struct {
	TaxID string
	Name  string
}

// Directory is the lookup contract reconciliation depends on.
type Directory interface {
	ResolveCompany(ctx context.Context, taxID string) (CompanyRef, error)
	ListCounterparties(ctx context.Context, company CompanyRef) ([]Entry, error)
}

// Open builds the backend selected in cfg.
// The returned close function releases connections and is never nil.
func Open(ctx context.Context, cfg config.DirectoryConfig, logger *slog.Logger) (Directory, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Kind {
	case config.DirectoryOdoo:
		client, err := NewOdoo(cfg.Odoo, cfg.Timeout, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return client, func() {}, nil

	case config.DirectoryPostgres:
		pg, err := OpenPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return pg, pg.Close, nil

	case config.DirectoryFile:
		file, err := LoadFileConfig(cfg.File)
		if err != nil {
			return nil, func() {}, err
		}
		return file, func() {}, nil

	case "":
		return nil, func() {}, errors.New("no directory configured (set directory.kind)")
	}

	return nil, func() {}, fmt.Errorf("unknown directory kind %q", cfg.Kind)
}
