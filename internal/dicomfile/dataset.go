// Package dicomfile wraps github.com/suyashkumar/dicom with tolerant,
// type-safe accessors. Absent or malformed tags never surface as errors
// here; callers get zero values and substitute their own defaults.
package dicomfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a parsed DICOM dataset.
type Dataset struct {
	ds dicom.Dataset
}

// Parse reads a full DICOM stream, pixel data included.
func Parse(r io.Reader, n int64) (*Dataset, error) {
	ds, err := dicom.Parse(r, n, nil)
	if err != nil {
		return nil, fmt.Errorf("parse dicom: %w", err)
	}
	return &Dataset{ds: ds}, nil
}

// ParseBytes parses an in-memory DICOM file.
func ParseBytes(b []byte) (*Dataset, error) {
	return Parse(bytes.NewReader(b), int64(len(b)))
}

// Open parses the file at path, pixel data included.
func Open(path string) (*Dataset, error) {
	return openFile(path, false)
}

// OpenMetadata parses only the header of the file at path.
func OpenMetadata(path string) (*Dataset, error) {
	return openFile(path, true)
}

func openFile(path string, skipPixels bool) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var opts []dicom.ParseOption
	if skipPixels {
		opts = append(opts, dicom.SkipPixelData())
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Dataset{ds: ds}, nil
}

// FromDataset wraps an already-parsed dataset. Used by tests to build
// synthetic headers without real files.
func FromDataset(ds dicom.Dataset) *Dataset {
	return &Dataset{ds: ds}
}

// Strings returns all string values for the tag, trimmed. Integer and
// float values are formatted so callers can treat every tag uniformly.
func (d *Dataset) Strings(t tag.Tag) []string {
	el, err := d.ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	case []int:
		out := make([]string, 0, len(v))
		for _, n := range v {
			out = append(out, strconv.Itoa(n))
		}
		return out
	case []float64:
		out := make([]string, 0, len(v))
		for _, f := range v {
			out = append(out, strconv.FormatFloat(f, 'g', -1, 64))
		}
		return out
	}
	return nil
}

// String returns the first non-empty string value for the tag, or "".
func (d *Dataset) String(t tag.Tag) string {
	for _, s := range d.Strings(t) {
		if s != "" {
			return s
		}
	}
	return ""
}

// Int returns the first value for the tag as an int. DICOM encodes several
// numeric VRs as strings (IS), so both representations are accepted.
func (d *Dataset) Int(t tag.Tag) (int, bool) {
	el, err := d.ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value == nil {
		return 0, false
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Float returns the first value for the tag as a float64. Decimal string
// (DS) values are parsed.
func (d *Dataset) Float(t tag.Tag) (float64, bool) {
	fs := d.Floats(t)
	if len(fs) == 0 {
		return 0, false
	}
	return fs[0], true
}

// Floats returns all values for the tag as float64s.
func (d *Dataset) Floats(t tag.Tag) []float64 {
	el, err := d.ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []float64:
		return v
	case []int:
		out := make([]float64, 0, len(v))
		for _, n := range v {
			out = append(out, float64(n))
		}
		return out
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// Has reports whether the tag is present in the dataset.
func (d *Dataset) Has(t tag.Tag) bool {
	el, err := d.ds.FindElementByTag(t)
	return err == nil && el != nil
}
