// =============================================================================
// CFE XML Extractor - Document Converter
// =============================================================================
//
// This module turns the bytes of ONE fiscal XML document into line-item rows.
//
// CONVERSION PIPELINE:
//   1. Parse the bytes into a namespace-agnostic tree
//   2. Read the header fields by local tag name
//   3. Sanitize the Adenda free text
//   4. Find every <Item> element, wherever it is nested
//   5. Flatten each item and build one row per item
//
// FAILURE POLICY:
//   A document that cannot be parsed yields no rows and an error wrapping
//   ErrMalformedDocument so the batch can count it. Missing or unparsable
//   fields never fail: text defaults to "" and numbers to 0. A document
//   without items yields no rows and no error.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/normalize"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/xmltree"
)

// ErrMalformedDocument marks documents whose bytes are not a readable XML tree.
var ErrMalformedDocument = errors.New("malformed document")

// =============================================================================
// CFE TAG NAMES
// =============================================================================

const (
	tagIssuerTaxID    = "RUCEmisor"
	tagIssuerName     = "RznSoc"
	tagRecipientTaxID = "DocRecep"
	tagRecipientName  = "RznSocRecep"
	tagSeries         = "Serie"
	tagNumber         = "Nro"
	tagIssueDate      = "FchEmis"
	tagDueDate        = "FchVenc"
	tagCurrency       = "TpoMoneda"
	tagDocType        = "TipoCFE"
	tagAddendum       = "Adenda"

	tagItem        = "Item"
	tagTaxCode     = "IndFact"
	tagNet         = "MontoItem"
	tagTax         = "IVAMonto"
	tagQuantity    = "Cantidad"
	tagUnitPrice   = "PrecioUnitario"
	tagDescription = "NomItem"
)

// lineNumberTags are accepted aliases for the item line number. Most
// emitters use NroLinDet; some use NroLinDR.
var lineNumberTags = []string{"NroLinDet", "NroLinDR"}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter extracts rows from individual documents. It holds no per-document
// state and is safe for concurrent use.
type Converter struct {
	logger *slog.Logger
}

// New creates a Converter. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Extract parses one document.
//
// PARAMETERS:
//   - data: The raw document bytes.
//   - source: The archive entry name, copied into every row.
//   - role: The role assigned by the Classifier.
//
// RETURNS:
//   - One row per <Item>, in document order. All rows share one DocKey.
//   - An error wrapping ErrMalformedDocument when data cannot be parsed.
func (c *Converter) Extract(data []byte, source string, role types.Role) ([]types.Row, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		c.logger.Debug("document could not be parsed", "source", source, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, source, err)
	}

	header := readHeader(root, role)
	key := header.Key()

	items := root.FindAll(tagItem)
	if len(items) == 0 {
		c.logger.Debug("document has no items", "source", source, "doc_key", key)
		return nil, nil
	}

	rows := make([]types.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, buildRow(header, key, source, item.Fields()))
	}

	c.logger.Debug("document extracted", "source", source, "doc_key", key, "rows", len(rows))
	return rows, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readHeader resolves the document-level fields.
func readHeader(root *xmltree.Node, role types.Role) types.Header {
	return types.NewHeader(types.Header{
		IssuerTaxID:    root.Find(tagIssuerTaxID),
		IssuerName:     root.Find(tagIssuerName),
		RecipientTaxID: root.Find(tagRecipientTaxID),
		RecipientName:  root.Find(tagRecipientName),
		Series:         root.Find(tagSeries),
		Number:         root.Find(tagNumber),
		IssueDate:      root.Find(tagIssueDate),
		DueDate:        root.Find(tagDueDate),
		Currency:       root.Find(tagCurrency),
		DocType:        root.Find(tagDocType),
		Addendum:       normalize.Text(root.Find(tagAddendum)),
	}, role)
}

// buildRow combines the header with one flattened item.
func buildRow(header types.Header, key, source string, item *xmltree.FieldMap) types.Row {
	taxCode := item.Value(tagTaxCode)
	net := normalize.Number(item.Value(tagNet))
	tax := normalize.Number(item.Value(tagTax))

	return types.Row{
		Header:      header,
		DocKey:      key,
		Source:      source,
		Line:        item.First(lineNumberTags...),
		Description: item.Value(tagDescription),
		Quantity:    normalize.Number(item.Value(tagQuantity)),
		UnitPrice:   normalize.Number(item.Value(tagUnitPrice)),
		TaxCode:     taxCode,
		TaxLabel:    TaxLabel(taxCode),
		Net:         net,
		Tax:         tax,
		Total:       net + tax,
		Item:        item,
	}
}
