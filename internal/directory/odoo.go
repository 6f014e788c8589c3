package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
)

// Odoo reads the directory from an Odoo instance over JSON-RPC.
//
// Companies are res.company records matched on vat. Counterparties are
// res.partner records whose company_id is the resolved company or empty
// (partners shared across companies).
type Odoo struct {
	cfg        config.OdooConfig
	httpClient *http.Client
	logger     *slog.Logger

	requestID atomic.Int64

	loginMu sync.Mutex
	uid     int64
}

// rpcRequest is a JSON-RPC 2.0 call envelope.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("odoo error %d: %s", e.Code, e.Data.Message)
	}
	return fmt.Sprintf("odoo error %d: %s", e.Code, e.Message)
}

// odooRecord is a search_read row. Odoo sends false for empty char fields,
// hence the loose types.
type odooRecord struct {
	ID   int64 `json:"id"`
	Name any   `json:"name"`
	VAT  any   `json:"vat"`
}

// NewOdoo validates cfg and returns a client. Login happens on first use.
func NewOdoo(cfg config.OdooConfig, timeout time.Duration, logger *slog.Logger) (*Odoo, error) {
	if cfg.URL == "" || cfg.Database == "" || cfg.Username == "" {
		return nil, errors.New("odoo directory requires url, database and username")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Odoo{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// ResolveCompany finds the res.company whose vat equals taxID.
func (o *Odoo) ResolveCompany(ctx context.Context, taxID string) (CompanyRef, error) {
	var records []odooRecord
	err := o.searchRead(ctx, "res.company",
		[]any{[]any{"vat", "=", taxID}},
		map[string]any{"fields": []string{"id", "name", "vat"}, "limit": 1},
		&records)
	if err != nil {
		return CompanyRef{}, err
	}
	if len(records) == 0 {
		return CompanyRef{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, taxID)
	}

	rec := records[0]
	return CompanyRef{
		ID:    strconv.FormatInt(rec.ID, 10),
		TaxID: odooString(rec.VAT),
		Name:  odooString(rec.Name),
	}, nil
}

// ListCounterparties returns the partners visible to company.
func (o *Odoo) ListCounterparties(ctx context.Context, company CompanyRef) ([]Entry, error) {
	companyID, err := strconv.ParseInt(company.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid odoo company id %q: %w", company.ID, err)
	}

	var records []odooRecord
	err = o.searchRead(ctx, "res.partner",
		[]any{"|", []any{"company_id", "=", companyID}, []any{"company_id", "=", false}},
		map[string]any{"fields": []string{"id", "name", "vat"}},
		&records)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{TaxID: odooString(rec.VAT), Name: odooString(rec.Name)})
	}

	o.logger.Debug("odoo counterparties listed", "company_id", companyID, "count", len(entries))
	return entries, nil
}

// =============================================================================
// JSON-RPC PLUMBING
// =============================================================================

// login authenticates once and remembers the uid.
func (o *Odoo) login(ctx context.Context) (int64, error) {
	o.loginMu.Lock()
	defer o.loginMu.Unlock()

	if o.uid != 0 {
		return o.uid, nil
	}

	raw, err := o.call(ctx, "common", "login", []any{o.cfg.Database, o.cfg.Username, o.cfg.Password})
	if err != nil {
		return 0, fmt.Errorf("odoo login failed: %w", err)
	}

	// A rejected login answers false instead of an error.
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		return 0, errors.New("odoo login rejected: check username and password")
	}

	o.uid = uid
	o.logger.Debug("odoo login succeeded", "uid", uid)
	return uid, nil
}

// searchRead runs model.search_read(domain, **kwargs) into out.
func (o *Odoo) searchRead(ctx context.Context, model string, domain []any, kwargs map[string]any, out any) error {
	uid, err := o.login(ctx)
	if err != nil {
		return err
	}

	args := []any{o.cfg.Database, uid, o.cfg.Password, model, "search_read", []any{domain}, kwargs}
	raw, err := o.call(ctx, "object", "execute_kw", args)
	if err != nil {
		return fmt.Errorf("odoo %s.search_read failed: %w", model, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse odoo %s records: %w", model, err)
	}
	return nil
}

// call posts one JSON-RPC request to /jsonrpc.
func (o *Odoo) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      o.requestID.Add(1),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL+"/jsonrpc", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from odoo", resp.StatusCode)
	}

	var result rpcResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return result.Result, nil
}

// odooString turns a char field (string or false) into a string.
func odooString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
