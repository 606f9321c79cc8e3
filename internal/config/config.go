// Package config reads the settings file shared with the settings front-end.
//
// The file is INI as the front-end writes it: "key=value" lines grouped under
// "[section]" headers, ';' or '#' comments. Keys and sections match without
// regard to case and the first occurrence of a repeated key wins. Lines that
// are not key/value pairs are skipped, so one bad line never hides the rest
// of the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultPath is where the settings file lives on the storage volume.
const DefaultPath = "config/dimlayer/config.ini"

var ErrNoStorage = errors.New("config: no storage volume")

var loadOptions = ini.LoadOptions{
	Insensitive:             true,
	AllowShadows:            true,
	SkipUnrecognizableLines: true,
}

// Document is a decoded settings file. The empty section name addresses the
// keys above the first section header.
type Document struct {
	f *ini.File
}

// Parse decodes an INI settings file.
func Parse(data []byte) (Document, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Document{}, fmt.Errorf("config: %w", err)
	}
	return Document{f: f}, nil
}

// String returns the raw value of key in section.
func (d Document) String(section, key string) (string, bool) {
	if d.f == nil {
		return "", false
	}
	sec, err := d.f.GetSection(section)
	if err != nil {
		return "", false
	}
	k, err := sec.GetKey(key)
	if err != nil {
		return "", false
	}
	return k.String(), true
}

// Int returns key from section as an integer. Decimal values may carry
// leading zeros, "0x" selects hex and fractions are truncated. Values that
// are not numbers, including NaN, are reported as absent; values beyond the
// int32 range saturate.
func (d Document) Int(section, key string) (int64, bool) {
	s, ok := d.String(section, key)
	if !ok {
		return 0, false
	}
	return parseInt(strings.TrimSpace(s))
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return n, true
	}
	if h, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		if n, err := strconv.ParseUint(h, 16, 32); err == nil && n <= math.MaxInt32 {
			return int64(n), true
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return int64(max(min(v, math.MaxInt32), math.MinInt32)), true
}

// Lookup returns the first value of key found in sections, in order.
func (d Document) Lookup(key string, sections ...string) (int64, bool) {
	for _, s := range sections {
		if v, ok := d.Int(s, key); ok {
			return v, true
		}
	}
	return 0, false
}

// File is a settings file on a storage volume.
type File struct {
	FS   fs.FS
	Path string
}

// Load reads and decodes the file. Every call reads the file again.
func (f File) Load() (Document, error) {
	if f.FS == nil {
		return Document{}, ErrNoStorage
	}
	data, err := fs.ReadFile(f.FS, f.Path)
	if err != nil {
		return Document{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}
