// =============================================================================
// CFE XML Extractor - Namespace-Agnostic XML Tree
// =============================================================================
//
// This package parses a fiscal XML document into a small in-memory tree and
// answers lookups by LOCAL tag name only. CFE files arrive from many issuers
// and billing systems; some declare the DGI namespace with a prefix
// (<ns0:RUCEmisor>), some as a default namespace, some not at all. Matching on
// the local name makes all of them look the same to the extractor.
//
// LOOKUP POLICY:
//   Every lookup is depth-first, in document order, and the FIRST match wins.
//   Tax summary blocks reuse tag names from item blocks, so the earliest and
//   most local occurrence is the authoritative one.
//
// ENCODINGS:
//   UTF-8 is handled natively. UTF-16 input (detected from its byte order
//   mark or from the "<" of the declaration) is transcoded up front. Documents
//   declaring ISO-8859-1, ISO-8859-15 or Windows-1252 are transcoded through
//   golang.org/x/text. Any other declared charset makes Parse fail, which the
//   caller treats as a malformed document.
//
// MIXED CONTENT:
//   When a child element interrupts an element's text, the fragments on
//   either side are joined with one space: <Adenda>Orden<br/>4512</Adenda>
//   reads as "Orden 4512".
//
// =============================================================================

package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrEmptyDocument is returned when the input contains no root element.
var ErrEmptyDocument = errors.New("document has no root element")

// utf8BOM is stripped before decoding; encoding/xml rejects it as content.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// NODE STRUCTURE
// =============================================================================

// Node is one element of the parsed document.
type Node struct {
	// Name is the local tag name with any namespace prefix removed.
	Name string

	// Space is the resolved namespace URL, kept for diagnostics only.
	// Lookups never consult it.
	Space string

	// Text is the element's own character data (text and CDATA directly
	// inside the element, not inside its children), untrimmed. Fragments
	// separated by a child element are joined with a single space.
	Text string

	// Children are the child elements in document order.
	Children []*Node
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes data into a tree rooted at the document element.
//
// RETURNS:
//   - The root node.
//   - An error for any structural problem: bad syntax, unsupported charset,
//     more than one root element or no root element at all.
func Parse(data []byte) (*Node, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader

	var (
		root  *Node
		stack []*Node

		// interrupted marks elements whose text was cut by a child element.
		interrupted = make(map[*Node]bool)
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local, Space: t.Name.Space}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("unexpected second root element <%s>", t.Name.Local)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
				if strings.TrimSpace(parent.Text) != "" {
					interrupted[parent] = true
				}
			}
			stack = append(stack, node)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, errors.New("character data outside the root element")
				}
				continue
			}
			top := stack[len(stack)-1]
			chunk := string(t)
			if interrupted[top] && strings.TrimSpace(chunk) != "" {
				delete(interrupted, top)
				if !endsInSpace(top.Text) && !startsWithSpace(chunk) {
					top.Text += " "
				}
			}
			top.Text += chunk
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}

	return root, nil
}

// toUTF8 transcodes UTF-16 input to UTF-8. Other input is returned as is.
func toUTF8(data []byte) ([]byte, error) {
	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(data, []byte{'<', 0x00}):
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case bytes.HasPrefix(data, []byte{0x00, '<'}):
		enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		return data, nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode utf-16: %w", err)
	}
	return out, nil
}

func endsInSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

// charsetReader maps the encodings seen in CFE exports to UTF-8 readers.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1", "l1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "iso-8859-15", "iso8859-15", "latin-9":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252", "x-cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "us-ascii", "ascii", "utf8":
		return input, nil
	case "utf-16", "utf-16le", "utf-16be", "utf16":
		// Already transcoded by toUTF8.
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

// =============================================================================
// TRAVERSAL
// =============================================================================

// Walk visits n and all its descendants depth-first in document order.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the trimmed text of the first element (n included) whose
// local name equals name. It returns "" when there is no such element or
// the first match has no text; later matches are never consulted.
func (n *Node) Find(name string) string {
	var text string
	n.Walk(func(node *Node) bool {
		if node.Name == name {
			text = strings.TrimSpace(node.Text)
			return false
		}
		return true
	})
	return text
}

// FindAll returns every element (n included) whose local name equals name,
// however deeply nested.
func (n *Node) FindAll(name string) []*Node {
	var nodes []*Node
	n.Walk(func(node *Node) bool {
		if node.Name == name {
			nodes = append(nodes, node)
		}
		return true
	})
	return nodes
}

// Fields flattens the subtree rooted at n into an ordered map from local
// name to the first trimmed text seen for that name.
func (n *Node) Fields() *FieldMap {
	fields := NewFieldMap()
	n.Walk(func(node *Node) bool {
		fields.Add(node.Name, strings.TrimSpace(node.Text))
		return true
	})
	return fields
}
