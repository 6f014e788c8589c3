package xmltree

import (
	"errors"
	"reflect"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

const prefixedCFE = `<?xml version="1.0" encoding="UTF-8"?>
<ns0:CFE xmlns:ns0="http://cfe.dgi.gub.uy">
  <ns0:eFact>
    <ns0:Encabezado>
      <ns0:Emisor>
        <ns0:RUCEmisor> 210000000012 </ns0:RUCEmisor>
        <ns0:RznSoc>Emisora SA</ns0:RznSoc>
      </ns0:Emisor>
    </ns0:Encabezado>
    <ns0:Detalle>
      <ns0:Item><ns0:NroLinDet>1</ns0:NroLinDet></ns0:Item>
      <ns0:Item><ns0:NroLinDet>2</ns0:NroLinDet></ns0:Item>
    </ns0:Detalle>
  </ns0:eFact>
</ns0:CFE>`

func TestParseStripsNamespaces(t *testing.T) {
	root, err := Parse([]byte(prefixedCFE))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if root.Name != "CFE" {
		t.Errorf("root.Name = %q, want CFE", root.Name)
	}
	if got := root.Find("RUCEmisor"); got != "210000000012" {
		t.Errorf("Find(RUCEmisor) = %q, want trimmed value", got)
	}
	if got := len(root.FindAll("Item")); got != 2 {
		t.Errorf("FindAll(Item) = %d nodes, want 2", got)
	}
}

func TestFindFirstOccurrenceWins(t *testing.T) {
	root, err := Parse([]byte(`<r><a><Foo>A</Foo></a><Foo>B</Foo></r>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.Find("Foo"); got != "A" {
		t.Errorf("Find(Foo) = %q, want A", got)
	}
}

func TestFindMissingAndEmpty(t *testing.T) {
	root, err := Parse([]byte(`<r><Empty>   </Empty><Empty>later</Empty></r>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"absent tag", "Missing", ""},
		{"first match is blank", "Empty", ""},
		{"root itself", "r", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := root.Find(tt.tag); got != tt.want {
				t.Errorf("Find(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestFieldsOrderedFirstWins(t *testing.T) {
	root, err := Parse([]byte(`<Item>
		<NroLinDet>1</NroLinDet>
		<NomItem> Widget </NomItem>
		<Sub><NomItem>Nested</NomItem><Extra>x</Extra></Sub>
	</Item>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fields := root.Fields()
	wantKeys := []string{"Item", "NroLinDet", "NomItem", "Sub", "Extra"}
	if !reflect.DeepEqual(fields.Keys(), wantKeys) {
		t.Errorf("Keys() = %v, want %v", fields.Keys(), wantKeys)
	}
	if got := fields.Value("NomItem"); got != "Widget" {
		t.Errorf("Value(NomItem) = %q, want Widget", got)
	}
	if _, ok := fields.Get("Missing"); ok {
		t.Error("Get(Missing) reported present")
	}
}

func TestFieldMapFirstAlias(t *testing.T) {
	m := NewFieldMap()
	m.Add("NroLinDR", "7")
	if got := m.First("NroLinDet", "NroLinDR"); got != "7" {
		t.Errorf("First() = %q, want 7", got)
	}
	if m.Add("NroLinDR", "8") {
		t.Error("Add() replaced an existing value")
	}
	if got := m.First("Nope"); got != "" {
		t.Errorf("First(Nope) = %q, want empty", got)
	}
}

func TestParseCDATA(t *testing.T) {
	root, err := Parse([]byte(`<CFE><Adenda><![CDATA[<p>Hola</p>]]></Adenda></CFE>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.Find("Adenda"); got != "<p>Hola</p>" {
		t.Errorf("Find(Adenda) = %q", got)
	}
}

func TestParseLatin1(t *testing.T) {
	// "Razón" with ó encoded as a single ISO-8859-1 byte.
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><r><RznSoc>Raz\xf3n</RznSoc></r>")
	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.Find("RznSoc"); got != "Razón" {
		t.Errorf("Find(RznSoc) = %q, want Razón", got)
	}
}

func TestParseBOM(t *testing.T) {
	doc := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`<r><a>1</a></r>`)...)
	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := root.Find("a"); got != "1" {
		t.Errorf("Find(a) = %q, want 1", got)
	}
}

func TestParseMixedContent(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		tag  string
		want string
	}{
		{"child between words", `<r><Adenda>Orden<br/>4512</Adenda></r>`, "Adenda", "Orden 4512"},
		{"child with text", `<r><Nro>pre<x>y</x>post</Nro></r>`, "Nro", "pre post"},
		{"spaces already present", `<r><Adenda>Orden <br/> 4512</Adenda></r>`, "Adenda", "Orden  4512"},
		{"leading child only", `<r><Adenda><br/>4512</Adenda></r>`, "Adenda", "4512"},
		{"trailing child only", `<r><Adenda>Orden<br/></Adenda></r>`, "Adenda", "Orden"},
		{"several children", `<r><Adenda>a<b/>b<c/>c</Adenda></r>`, "Adenda", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := root.Find(tt.tag); got != tt.want {
				t.Errorf("Find(%s) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseUTF16(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-16"?><r><RznSoc>Razón</RznSoc></r>`

	tests := []struct {
		name   string
		endian unicode.Endianness
		bom    unicode.BOMPolicy
	}{
		{"little endian with BOM", unicode.LittleEndian, unicode.UseBOM},
		{"big endian with BOM", unicode.BigEndian, unicode.UseBOM},
		{"little endian without BOM", unicode.LittleEndian, unicode.IgnoreBOM},
		{"big endian without BOM", unicode.BigEndian, unicode.IgnoreBOM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := unicode.UTF16(tt.endian, tt.bom).NewEncoder().String(doc)
			if err != nil {
				t.Fatal(err)
			}
			root, err := Parse([]byte(encoded))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := root.Find("RznSoc"); got != "Razón" {
				t.Errorf("Find(RznSoc) = %q, want Razón", got)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty input", ""},
		{"whitespace only", "   \n"},
		{"unclosed element", "<r><a>1</a>"},
		{"mismatched tags", "<r><a>1</b></r>"},
		{"two roots", "<r/><s/>"},
		{"trailing text", "<r/>junk"},
		{"unknown charset", `<?xml version="1.0" encoding="KOI8-R"?><r/>`},
		{"not xml", "PK\x03\x04 binary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("Parse(%q) expected error", tt.doc)
			}
		})
	}

	if _, err := Parse(nil); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("Parse(nil) error = %v, want ErrEmptyDocument", err)
	}
}
