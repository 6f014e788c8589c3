package converter

import (
	"errors"
	"testing"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/types"
)

const sampleInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<CFE_Adenda>
<ns0:CFE xmlns:ns0="http://cfe.dgi.gub.uy" version="1.0">
  <ns0:eFact>
    <ns0:Encabezado>
      <ns0:IdDoc>
        <ns0:TipoCFE>111</ns0:TipoCFE>
        <ns0:Serie>A</ns0:Serie>
        <ns0:Nro>1234</ns0:Nro>
        <ns0:FchEmis>2024-03-05</ns0:FchEmis>
        <ns0:FchVenc>2024-04-05</ns0:FchVenc>
      </ns0:IdDoc>
      <ns0:Emisor>
        <ns0:RUCEmisor>210000000012</ns0:RUCEmisor>
        <ns0:RznSoc>Proveedora SA</ns0:RznSoc>
      </ns0:Emisor>
      <ns0:Receptor>
        <ns0:DocRecep>219999990019</ns0:DocRecep>
        <ns0:RznSocRecep>Compradora SRL</ns0:RznSocRecep>
      </ns0:Receptor>
      <ns0:Totales>
        <ns0:TpoMoneda>UYU</ns0:TpoMoneda>
      </ns0:Totales>
    </ns0:Encabezado>
    <ns0:Detalle>
      <ns0:Item>
        <ns0:NroLinDet>1</ns0:NroLinDet>
        <ns0:IndFact>3</ns0:IndFact>
        <ns0:NomItem>Servicio mensual</ns0:NomItem>
        <ns0:Cantidad>2</ns0:Cantidad>
        <ns0:PrecioUnitario>1.000,50</ns0:PrecioUnitario>
        <ns0:MontoItem>2.001,00</ns0:MontoItem>
        <ns0:IVAMonto>440.22</ns0:IVAMonto>
        <ns0:CodItem>SRV-1</ns0:CodItem>
      </ns0:Item>
      <ns0:Resumen>
        <ns0:Item>
          <ns0:NroLinDR>2</ns0:NroLinDR>
          <ns0:IndFact>99</ns0:IndFact>
          <ns0:NomItem>Redondeo</ns0:NomItem>
          <ns0:MontoItem>abc</ns0:MontoItem>
        </ns0:Item>
      </ns0:Resumen>
    </ns0:Detalle>
  </ns0:eFact>
</ns0:CFE>
<Adenda>&lt;p&gt;Orden&lt;/p&gt;&lt;p&gt;4512&lt;/p&gt;</Adenda>
</CFE_Adenda>`

func TestExtractBuildsOneRowPerItem(t *testing.T) {
	conv := New(nil)

	rows, err := conv.Extract([]byte(sampleInvoice), "Recibidos/a.xml", types.RoleReceived)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Extract() returned %d rows, want 2", len(rows))
	}

	wantKey := "210000000012|219999990019|A|1234|2024-03-05|111"
	for i, row := range rows {
		if row.DocKey != wantKey {
			t.Errorf("rows[%d].DocKey = %q, want %q", i, row.DocKey, wantKey)
		}
		if row.Total != row.Net+row.Tax {
			t.Errorf("rows[%d].Total = %v, want Net+Tax = %v", i, row.Total, row.Net+row.Tax)
		}
		if row.Source != "Recibidos/a.xml" {
			t.Errorf("rows[%d].Source = %q", i, row.Source)
		}
	}

	first := rows[0]
	if first.IssuerName != "Proveedora SA" || first.RecipientName != "Compradora SRL" {
		t.Errorf("names = %q / %q", first.IssuerName, first.RecipientName)
	}
	if first.Currency != "UYU" || first.DueDate != "2024-04-05" {
		t.Errorf("Currency/DueDate = %q / %q", first.Currency, first.DueDate)
	}
	if first.Addendum != "Orden 4512" {
		t.Errorf("Addendum = %q, want %q", first.Addendum, "Orden 4512")
	}
	if first.Role != types.RoleReceived || first.CompanyTaxID != "219999990019" {
		t.Errorf("Role/CompanyTaxID = %q / %q", first.Role, first.CompanyTaxID)
	}
	if first.Line != "1" || first.Description != "Servicio mensual" {
		t.Errorf("Line/Description = %q / %q", first.Line, first.Description)
	}
	if first.Quantity != 2 || first.UnitPrice != 1000.5 || first.Net != 2001 || first.Tax != 440.22 {
		t.Errorf("amounts = %v %v %v %v", first.Quantity, first.UnitPrice, first.Net, first.Tax)
	}
	if first.TaxLabel != "Tasa Básica (22%)" {
		t.Errorf("TaxLabel = %q", first.TaxLabel)
	}
	if got := first.Item.Value("CodItem"); got != "SRV-1" {
		t.Errorf("Item.Value(CodItem) = %q", got)
	}

	second := rows[1]
	if second.Line != "2" {
		t.Errorf("NroLinDR alias not used: Line = %q", second.Line)
	}
	if second.Net != 0 || second.Tax != 0 || second.Quantity != 0 || second.UnitPrice != 0 {
		t.Errorf("missing/unparsable amounts should be 0: %+v", second)
	}
	if second.TaxLabel != OtherTaxLabel {
		t.Errorf("TaxLabel = %q, want catch-all", second.TaxLabel)
	}
}

func TestExtractMalformed(t *testing.T) {
	conv := New(nil)

	rows, err := conv.Extract([]byte("<CFE><Item>"), "bad.xml", types.RoleUnknown)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("Extract() error = %v, want ErrMalformedDocument", err)
	}
	if len(rows) != 0 {
		t.Errorf("Extract() returned %d rows for malformed input", len(rows))
	}
}

func TestExtractWithoutItems(t *testing.T) {
	conv := New(nil)

	doc := `<CFE><RUCEmisor>1</RUCEmisor><Nro>9</Nro></CFE>`
	rows, err := conv.Extract([]byte(doc), "emitidos/x.xml", types.RoleIssued)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Extract() returned %d rows, want 0", len(rows))
	}
}

func TestExtractUnknownRole(t *testing.T) {
	conv := New(nil)

	doc := `<CFE><RUCEmisor>1</RUCEmisor><DocRecep>2</DocRecep><Item><MontoItem>10</MontoItem></Item></CFE>`
	rows, err := conv.Extract([]byte(doc), "other/z.xml", types.RoleUnknown)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Extract() returned %d rows, want 1", len(rows))
	}
	if rows[0].CompanyTaxID != "" || rows[0].Role != types.RoleUnknown {
		t.Errorf("unknown role should leave company empty: %+v", rows[0].Header)
	}
	if rows[0].Total != 10 {
		t.Errorf("Total = %v, want 10", rows[0].Total)
	}
}

func TestTaxLabel(t *testing.T) {
	tests := map[string]string{
		"1":  "Exento",
		"2":  "Tasa Mínima (10%)",
		"3":  "Tasa Básica (22%)",
		"4":  "Exportación",
		"10": "Exportación Servicios",
		"99": OtherTaxLabel,
		"":   OtherTaxLabel,
		" 3": "Tasa Básica (22%)",
	}

	for code, want := range tests {
		if got := TaxLabel(code); got != want {
			t.Errorf("TaxLabel(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		path string
		want types.Role
	}{
		{"2024/recibidos/x.xml", types.RoleReceived},
		{"2024/EMITIDOS/y.xml", types.RoleIssued},
		{"/other/z.xml", types.RoleUnknown},
		{"CFE Recibidos Marzo/a.XML", types.RoleReceived},
		{"emitidos/recibidos/both.xml", types.RoleReceived},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifyCustomMarkers(t *testing.T) {
	c := NewClassifier([]string{"Compras"}, []string{"Ventas", ""})

	if got := c.Classify("2024/compras/a.xml"); got != types.RoleReceived {
		t.Errorf("Classify(compras) = %q", got)
	}
	if got := c.Classify("2024/VENTAS/a.xml"); got != types.RoleIssued {
		t.Errorf("Classify(ventas) = %q", got)
	}
	if got := c.Classify("2024/otros/a.xml"); got != types.RoleUnknown {
		t.Errorf("blank marker must not match everything: got %q", got)
	}
}
