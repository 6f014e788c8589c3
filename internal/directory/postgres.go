package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
)

// Postgres reads the directory straight from an Odoo database. It uses the
// same model as the JSON-RPC backend: res_company joined to its partner for
// the tax id, res_partner rows owned by the company or shared.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const (
	resolveCompanySQL = `
SELECT c.id, COALESCE(c.name, ''), COALESCE(p.vat, '')
FROM res_company c
JOIN res_partner p ON p.id = c.partner_id
WHERE p.vat = $1
ORDER BY c.id
LIMIT 1`

	listCounterpartiesSQL = `
SELECT COALESCE(vat, ''), COALESCE(name, '')
FROM res_partner
WHERE (company_id = $1 OR company_id IS NULL)
  AND active
ORDER BY id`
)

// OpenPostgres creates a pool for cfg.DSN and checks connectivity.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres directory requires a dsn")
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "cfe-xml-extractor"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach directory database: %w", err)
	}

	logger.Info("connected to directory database")
	return &Postgres{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// ResolveCompany finds the company whose partner vat equals taxID.
func (p *Postgres) ResolveCompany(ctx context.Context, taxID string) (CompanyRef, error) {
	var (
		id  int64
		ref CompanyRef
	)
	err := p.pool.QueryRow(ctx, resolveCompanySQL, taxID).Scan(&id, &ref.Name, &ref.TaxID)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyRef{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, taxID)
	}
	if err != nil {
		return CompanyRef{}, fmt.Errorf("resolve company: %w", err)
	}
	ref.ID = strconv.FormatInt(id, 10)
	return ref, nil
}

// ListCounterparties returns active partners owned by company or shared.
func (p *Postgres) ListCounterparties(ctx context.Context, company CompanyRef) ([]Entry, error) {
	companyID, err := strconv.ParseInt(company.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid company id %q: %w", company.ID, err)
	}

	rows, err := p.pool.Query(ctx, listCounterpartiesSQL, companyID)
	if err != nil {
		return nil, fmt.Errorf("list counterparties: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.TaxID, &e.Name)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan counterparties: %w", err)
	}

	p.logger.Debug("postgres counterparties listed", "company_id", companyID, "count", len(entries))
	return entries, nil
}
