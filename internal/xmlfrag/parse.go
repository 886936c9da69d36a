package xmlfrag

import (
	"encoding/xml"
	"io"
	"strings"
)

// Parse converts an XML fragment (as returned by Extract) into a nested
// mapping. The fragment's root element is unwrapped: the returned map is
// keyed by the root's children, mirroring the agent-response shape the
// callers expect (the root tag itself, e.g. "response", carries no
// information beyond grouping).
//
// Rules:
//   - A leaf element with only text becomes the trimmed text as a string;
//     empty text becomes nil.
//   - A leaf element with attributes becomes {"_text": text, "_attributes": map[string]string}.
//   - An element with children becomes a map keyed by child tag; repeated
//     tags collapse into an ordered []any.
//   - An element with both children and non-whitespace text stores the
//     text under "_text" alongside the child keys.
func Parse(fragment string) (map[string]any, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, newValidationError("xmlfrag: fragment has no root element")
			}
			return nil, newValidationError("xmlfrag: malformed XML: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		val, err := parseElement(dec, start)
		if err != nil {
			return nil, err
		}
		if m, ok := val.(map[string]any); ok {
			return m, nil
		}
		// Root element had no children of its own; still return a mapping
		// so callers can treat Parse's result uniformly.
		return map[string]any{"_text": val}, nil
	}
}

// parseElement consumes tokens up to and including the matching
// EndElement for start, returning the element's value per the rules
// documented on Parse.
func parseElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any)
	hasChildren := false
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, newValidationError("xmlfrag: malformed XML inside <%s>: %v", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			hasChildren = true
			childVal, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(children, t.Name.Local, childVal)
		case xml.CharData:
			// Only the text immediately inside the element, before any
			// child, is significant (matches ElementTree's .text).
			if !hasChildren {
				text.Write(t)
			}
		case xml.EndElement:
			trimmed := strings.TrimSpace(text.String())
			attrs := attrsToMap(start.Attr)
			if hasChildren {
				if trimmed != "" {
					children["_text"] = trimmed
				}
				if attrs != nil {
					children["_attributes"] = attrs
				}
				return children, nil
			}
			if attrs != nil {
				return map[string]any{"_text": trimmed, "_attributes": attrs}, nil
			}
			if trimmed == "" {
				return nil, nil
			}
			return trimmed, nil
		}
	}
}

func addChild(children map[string]any, tag string, val any) {
	existing, ok := children[tag]
	if !ok {
		children[tag] = val
		return
	}
	if list, ok := existing.([]any); ok {
		children[tag] = append(list, val)
		return
	}
	children[tag] = []any{existing, val}
}

func attrsToMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
