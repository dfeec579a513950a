package htmlinclude

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	prefix    = "@@"
	directive = prefix + "include("
)

// include is one parsed @@include(...) occurrence.
type include struct {
	start, end int // byte range of the directive in the document
	path       string
	vars       map[string]any
}

// nextInclude finds the first directive at or after offset. ok is false when
// none remains.
func nextInclude(doc []byte, offset int) (inc include, ok bool, err error) {
	i := bytes.Index(doc[offset:], []byte(directive))
	if i < 0 {
		return include{}, false, nil
	}
	inc.start = offset + i
	p := skipSpace(doc, inc.start+len(directive))

	path, p, err := quoted(doc, p)
	if err != nil {
		return include{}, false, fmt.Errorf("offset %d: %w", inc.start, err)
	}
	inc.path = path
	p = skipSpace(doc, p)

	if p < len(doc) && doc[p] == ',' {
		p = skipSpace(doc, p+1)
		end, err := objectEnd(doc, p)
		if err != nil {
			return include{}, false, fmt.Errorf("offset %d: %w", inc.start, err)
		}
		if err := json.Unmarshal(doc[p:end], &inc.vars); err != nil {
			return include{}, false, fmt.Errorf("offset %d: invalid include variables: %w", inc.start, err)
		}
		p = skipSpace(doc, end)
	}
	if p >= len(doc) || doc[p] != ')' {
		return include{}, false, fmt.Errorf("offset %d: unterminated %s", inc.start, directive)
	}
	inc.end = p + 1
	return inc, true, nil
}

func skipSpace(doc []byte, p int) int {
	for p < len(doc) && (doc[p] == ' ' || doc[p] == '\t' || doc[p] == '\n' || doc[p] == '\r') {
		p++
	}
	return p
}

// quoted reads a single- or double-quoted string starting at p.
func quoted(doc []byte, p int) (string, int, error) {
	if p >= len(doc) || (doc[p] != '\'' && doc[p] != '"') {
		return "", p, fmt.Errorf("include path must be quoted")
	}
	q := doc[p]
	end := bytes.IndexByte(doc[p+1:], q)
	if end < 0 {
		return "", p, fmt.Errorf("unterminated include path")
	}
	return string(doc[p+1 : p+1+end]), p + end + 2, nil
}

// objectEnd returns the offset just past the JSON object starting at p,
// tracking nesting and string literals.
func objectEnd(doc []byte, p int) (int, error) {
	if p >= len(doc) || doc[p] != '{' {
		return p, fmt.Errorf("include variables must be a JSON object")
	}
	depth := 0
	inString := false
	for i := p; i < len(doc); i++ {
		c := doc[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return p, fmt.Errorf("unterminated include variables")
}
