package olx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/agentic-research/olxstore/api"
	"golang.org/x/net/html/charset"
)

// Element is the root element of a descriptor.
type Element struct {
	Name  string
	Attrs map[string]string
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Title returns display_name, or nil when the attribute is absent.
func (e *Element) Title() *string {
	if v, ok := e.Attrs["display_name"]; ok {
		return &v
	}
	return nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// ParseRoot checks that data is a well-formed XML document and returns its
// root element. Namespaced attributes are keyed "{namespace}local";
// namespace declarations are dropped.
func ParseRoot(data []byte) (*Element, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	d := xml.NewDecoder(bytes.NewReader(data))
	// Older exports declare latin-1 and friends.
	d.CharsetReader = charset.NewReaderLabel
	var root *Element
	depth := 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", api.ErrDescriptorParse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if root == nil {
				root = &Element{Name: t.Name.Local, Attrs: attrs(t.Attr)}
			} else if depth == 0 {
				return nil, fmt.Errorf("%w: multiple root elements", api.ErrDescriptorParse)
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: text outside the root element", api.ErrDescriptorParse)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", api.ErrDescriptorParse)
	}
	return root, nil
}

func attrs(in []xml.Attr) map[string]string {
	out := make(map[string]string, len(in))
	for _, a := range in {
		switch {
		case a.Name.Space == "xmlns", a.Name.Space == "" && a.Name.Local == "xmlns":
			continue
		case a.Name.Space != "":
			out["{"+a.Name.Space+"}"+a.Name.Local] = a.Value
		default:
			out[a.Name.Local] = a.Value
		}
	}
	return out
}
