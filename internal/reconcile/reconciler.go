// =============================================================================
// CFE XML Extractor - Directory Reconciler
// =============================================================================
//
// This module compares the counterparties observed in an extracted dataset
// with the ones the accounting system already knows for a company.
//
// RECONCILIATION STEPS:
//   1. Resolve the owning company's tax id in the directory
//   2. List the counterparties known to that company
//   3. Collect observed counterparties from the rows owned by the company:
//      - received documents contribute their issuer
//      - issued documents contribute their recipient
//      The company itself is never a counterparty.
//   4. Report observed minus known
//
// MATCHING:
//   - tax_id : trimmed tax ids compared exactly (default)
//   - name   : legal names compared case-insensitively, whitespace collapsed
//
// A company missing from the directory fails with
// directory.ErrCompanyNotFound. A company with no known counterparties is a
// valid result where every observed party is unmatched.
//
// =============================================================================

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/directory"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
)

// =============================================================================
// REPORT STRUCTURE
// =============================================================================

// Counterparty is one observed trading party.
type Counterparty struct {
	TaxID string
	Name  string

	// Documents is the number of distinct documents the party appears in.
	Documents int
}

// Report is the outcome of one reconciliation.
type Report struct {
	Company directory.CompanyRef
	MatchBy string

	// Observed and Known are the sizes of the compared sets.
	Observed int
	Known    int

	// Unmatched lists observed parties absent from the directory, in the
	// order they first appear in the dataset.
	Unmatched []Counterparty
}

// Reconciler runs reconciliations against one directory.
type Reconciler struct {
	dir     directory.Directory
	matchBy string
	logger  *slog.Logger
}

// New creates a Reconciler. Pass a directory.Cache to share lookups across
// calls within one run. An empty matchBy means tax_id.
func New(dir directory.Directory, matchBy string, logger *slog.Logger) (*Reconciler, error) {
	if dir == nil {
		return nil, fmt.Errorf("reconciler requires a directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	switch matchBy {
	case "":
		matchBy = config.MatchByTaxID
	case config.MatchByTaxID, config.MatchByName:
	default:
		return nil, fmt.Errorf("unknown match mode %q", matchBy)
	}
	return &Reconciler{dir: dir, matchBy: matchBy, logger: logger}, nil
}

// Reconcile reports the counterparties of companyTaxID found in rows but
// not in the directory.
func (r *Reconciler) Reconcile(ctx context.Context, companyTaxID string, rows []types.Row) (*Report, error) {
	companyTaxID = strings.TrimSpace(companyTaxID)
	if companyTaxID == "" {
		return nil, fmt.Errorf("company tax id is required")
	}

	ref, err := r.dir.ResolveCompany(ctx, companyTaxID)
	if err != nil {
		return nil, fmt.Errorf("resolve company %s: %w", companyTaxID, err)
	}

	entries, err := r.dir.ListCounterparties(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list counterparties of %s: %w", companyTaxID, err)
	}

	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if key := r.key(e.TaxID, e.Name); key != "" {
			known[key] = struct{}{}
		}
	}

	observed := r.observe(companyTaxID, ref.Name, rows)

	report := &Report{
		Company:  ref,
		MatchBy:  r.matchBy,
		Observed: len(observed),
		Known:    len(known),
	}
	for _, party := range observed {
		if _, ok := known[r.key(party.TaxID, party.Name)]; !ok {
			report.Unmatched = append(report.Unmatched, party)
		}
	}

	r.logger.Info("reconciliation complete",
		"company", companyTaxID,
		"match_by", r.matchBy,
		"observed", report.Observed,
		"known", report.Known,
		"unmatched", len(report.Unmatched))

	return report, nil
}

// observe collects distinct counterparties of the company in dataset order.
func (r *Reconciler) observe(companyTaxID, companyName string, rows []types.Row) []Counterparty {
	var (
		parties []Counterparty
		index   = make(map[string]int)
		seen    = make(map[string]struct{})
		self    = r.key(companyTaxID, companyName)
	)

	for _, row := range rows {
		if row.CompanyTaxID != companyTaxID {
			continue
		}
		taxID, name, ok := row.Counterparty()
		if !ok {
			continue
		}
		taxID = strings.TrimSpace(taxID)
		if taxID == companyTaxID {
			continue
		}
		key := r.key(taxID, name)
		if key == "" || key == self {
			continue
		}

		i, exists := index[key]
		if !exists {
			i = len(parties)
			index[key] = i
			parties = append(parties, Counterparty{TaxID: taxID, Name: strings.TrimSpace(name)})
		}
		if parties[i].Name == "" {
			parties[i].Name = strings.TrimSpace(name)
		}

		doc := key + types.KeyDelimiter + row.DocKey
		if _, counted := seen[doc]; !counted {
			seen[doc] = struct{}{}
			parties[i].Documents++
		}
	}
	return parties
}

// key is the comparison key of a party under the current match mode.
func (r *Reconciler) key(taxID, name string) string {
	if r.matchBy == config.MatchByName {
		return NormalizeName(name)
	}
	return strings.TrimSpace(taxID)
}

// NormalizeName folds case and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
