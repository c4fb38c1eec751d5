package searchindex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EncodeOptions controls the envelope written by Encode.
// Zero values keep the envelope the index was parsed from.
type EncodeOptions struct {
	Format Format
	Global string
}

// Encode writes the index in the generator's byte layout:
//
//	var documenterSearchIndex = {"docs":
//	[{...},{...}]
//	}
//
// Records are compact JSON with raw UTF-8 and no HTML escaping, so encoding a
// parsed generator file reproduces it byte for byte.
func (i *Index) Encode(w io.Writer, opts EncodeOptions) error {
	format := opts.Format
	if format == "" {
		format = i.format
	}
	if format == "" {
		format = FormatJS
	}
	global := opts.Global
	if global == "" {
		global = i.global
	}
	if global == "" {
		global = DefaultGlobal
	}

	bw := bufio.NewWriter(w)

	switch format {
	case FormatJS:
		fmt.Fprintf(bw, "var %s = {%q:\n[", global, DocsKey)
	case FormatJSON:
		fmt.Fprintf(bw, "{%q:\n[", DocsKey)
	case FormatArray:
		bw.WriteByte('[')
	default:
		return fmt.Errorf("unknown index format %q", format)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for n, rec := range i.docs {
		buf.Reset()
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", n, err)
		}
		if n > 0 {
			bw.WriteByte(',')
		}
		// Encoder terminates every value with a newline
		bw.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	}

	switch format {
	case FormatArray:
		bw.WriteString("]\n")
	default:
		bw.WriteString("]\n}\n")
	}

	return bw.Flush()
}

// Bytes returns the encoded index
func (i *Index) Bytes(opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := i.Encode(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the index to path, replacing any previous file atomically
func (i *Index) WriteFile(path string, opts EncodeOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := i.Encode(tmp, opts); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Regenerates reports whether encoding the parsed data reproduces it byte for byte
func Regenerates(data []byte) (bool, error) {
	idx, err := Parse(data)
	if err != nil {
		return false, err
	}
	out, err := idx.Bytes(EncodeOptions{})
	if err != nil {
		return false, err
	}
	return bytes.Equal(out, data), nil
}
