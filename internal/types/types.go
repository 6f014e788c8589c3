// =============================================================================
// CFE XML Extractor - Shared Types
// =============================================================================
//
// This package contains the dataset types shared by the extraction,
// aggregation, reconciliation and export modules. Keeping them here avoids
// import cycles between:
//   - converter   (produces rows)
//   - batch       (collects rows)
//   - reconcile   (reads rows)
//   - xlsxreport  (writes rows)
//
// =============================================================================

package types

import (
	"strings"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/xmltree"
)

// =============================================================================
// DOCUMENT ROLE
// =============================================================================

// Role is whether a document was issued or received by the business that
// owns the archive.
type Role string

const (
	RoleIssued   Role = "issued"
	RoleReceived Role = "received"
	RoleUnknown  Role = "unknown"
)

// KeyDelimiter joins the parts of a composite document key.
const KeyDelimiter = "|"

// =============================================================================
// DOCUMENT HEADER
// =============================================================================

// Header holds the document-level fields of one CFE.
// Build it with NewHeader so CompanyTaxID is always consistent with Role.
type Header struct {
	// IssuerTaxID is the issuer RUT (RUCEmisor).
	IssuerTaxID string

	// IssuerName is the issuer legal name (RznSoc).
	IssuerName string

	// RecipientTaxID is the recipient document number (DocRecep).
	RecipientTaxID string

	// RecipientName is the recipient legal name (RznSocRecep).
	// Consumer invoices usually leave it out.
	RecipientName string

	Series    string
	Number    string
	IssueDate string
	DueDate   string
	Currency  string

	// DocType is the TipoCFE code (101 e-Ticket, 111 e-Factura, ...).
	DocType string

	// Addendum is the sanitized Adenda free text.
	Addendum string

	// Role is inferred from the archive path.
	Role Role

	// CompanyTaxID is the owning company: the recipient for received
	// documents, the issuer for issued ones, empty when Role is unknown.
	CompanyTaxID string
}

// NewHeader fills in Role and the derived CompanyTaxID.
func NewHeader(h Header, role Role) Header {
	h.Role = role
	switch role {
	case RoleReceived:
		h.CompanyTaxID = h.RecipientTaxID
	case RoleIssued:
		h.CompanyTaxID = h.IssuerTaxID
	default:
		h.Role = RoleUnknown
		h.CompanyTaxID = ""
	}
	return h
}

// Key returns the composite key identifying the source document.
func (h Header) Key() string {
	return strings.Join([]string{
		h.IssuerTaxID,
		h.RecipientTaxID,
		h.Series,
		h.Number,
		h.IssueDate,
		h.DocType,
	}, KeyDelimiter)
}

// Counterparty returns the tax id and name of the party on the other side
// of the owning company. ok is false when the role is unknown.
func (h Header) Counterparty() (taxID, name string, ok bool) {
	switch h.Role {
	case RoleReceived:
		return h.IssuerTaxID, h.IssuerName, true
	case RoleIssued:
		return h.RecipientTaxID, h.RecipientName, true
	}
	return "", "", false
}

// =============================================================================
// LINE ITEM ROW
// =============================================================================

// Row is one invoice line flattened together with its document header.
type Row struct {
	Header

	// DocKey is identical for every row of the same document.
	DocKey string

	// Source is the archive entry the document came from.
	Source string

	Line        string
	Description string
	Quantity    float64
	UnitPrice   float64

	// TaxCode is the raw IndFact indicator, TaxLabel its description.
	TaxCode  string
	TaxLabel string

	Net float64
	Tax float64

	// Total is Net + Tax, unrounded.
	Total float64

	// Item carries every field of the item subtree for generic consumers.
	Item *xmltree.FieldMap
}
