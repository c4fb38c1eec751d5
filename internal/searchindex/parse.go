package searchindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"unicode"
)

var (
	assignRegex = regexp.MustCompile(`^(?:var|let|const)\s+([A-Za-z_$][\w$]*)\s*=\s*`)
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
)

type envelope struct {
	Docs *[]Record `json:"docs"`
}

// ParseFile reads and parses a search index file
func ParseFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}
	return Parse(data)
}

// ParseReader reads all of r and parses it as a search index
func ParseReader(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}
	return Parse(data)
}

// Parse decodes a search index in any of the supported envelopes:
//
//	var documenterSearchIndex = {"docs": [...]}
//	{"docs": [...]}
//	[...]
//
// Record order is preserved and unknown keys are rejected.
func Parse(data []byte) (*Index, error) {
	payload, offset, global := unwrap(data)

	idx := &Index{global: DefaultGlobal}
	if global != "" {
		idx.global = global
		idx.format = FormatJS
	}

	if len(payload) == 0 {
		return nil, &ParseError{Offset: int64(offset), Err: errors.New("empty input")}
	}

	switch payload[0] {
	case '[':
		var docs []Record
		if err := decodeStrict(payload, offset, &docs); err != nil {
			return nil, err
		}
		if idx.format == "" {
			idx.format = FormatArray
		}
		idx.docs = docs

	case '{':
		var env envelope
		if err := decodeStrict(payload, offset, &env); err != nil {
			return nil, err
		}
		if env.Docs == nil {
			return nil, ErrNoDocs
		}
		if idx.format == "" {
			idx.format = FormatJSON
		}
		idx.docs = *env.Docs

	default:
		return nil, &ParseError{
			Offset: int64(offset),
			Err:    fmt.Errorf("expected '{' or '[', found %q", payload[0]),
		}
	}

	if idx.docs == nil {
		idx.docs = []Record{}
	}
	return idx, nil
}

// decodeStrict decodes exactly one JSON value from payload, rejecting unknown fields and trailing data
func decodeStrict(payload []byte, base int, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return &ParseError{Offset: int64(base) + errorOffset(err, dec), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &ParseError{
			Offset: int64(base) + dec.InputOffset(),
			Err:    errors.New("unexpected data after search index"),
		}
	}
	return nil
}

func errorOffset(err error, dec *json.Decoder) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return dec.InputOffset()
}

// unwrap strips a byte order mark, surrounding whitespace and an optional
// JavaScript assignment, returning the JSON payload, its offset in data and
// the assigned variable name.
func unwrap(data []byte) (payload []byte, offset int, global string) {
	if bytes.HasPrefix(data, utf8BOM) {
		offset = len(utf8BOM)
	}
	payload = data[offset:]
	trimmed := bytes.TrimLeftFunc(payload, unicode.IsSpace)
	offset += len(payload) - len(trimmed)
	payload = trimmed

	if m := assignRegex.FindSubmatchIndex(payload); m != nil {
		global = string(payload[m[2]:m[3]])
		offset += m[1]
		payload = bytes.TrimRightFunc(payload[m[1]:], unicode.IsSpace)
		payload = bytes.TrimSuffix(payload, []byte(";"))
	}

	return bytes.TrimRightFunc(payload, unicode.IsSpace), offset, global
}
