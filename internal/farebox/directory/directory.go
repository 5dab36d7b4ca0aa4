// Package directory maps RFID identifiers to human-readable display
// names and derives placeholder names for everything else.
package directory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/transitpi/farebox/internal/farebox/types"
)

// Directory resolves display names for passengers. RFID identifiers
// are looked up in the loaded mapping; absent entries and all Wi-Fi
// addresses fall back to derived placeholder names.
type Directory struct {
	names map[string]string
}

// New builds a directory from an in-memory mapping. Keys are
// normalized to upper case.
func New(names map[string]string) *Directory {
	d := &Directory{names: make(map[string]string, len(names))}
	for id, name := range names {
		d.names[strings.ToUpper(strings.TrimSpace(id))] = name
	}
	return d
}

// Load reads a uid,name CSV file. A header row whose first column is
// "uid" or "id" (case-insensitive) is skipped. Duplicate identifiers
// are last-write-wins. A missing file yields an empty directory, not
// an error — the mapping is optional.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("open directory %s: %w", path, err)
	}
	defer f.Close()

	d := New(nil)
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		switch strings.ToLower(id) {
		case "uid", "id":
			continue
		}
		name := ""
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}
		d.names[strings.ToUpper(id)] = name
	}
	return d, nil
}

// Len reports the number of loaded entries.
func (d *Directory) Len() int { return len(d.names) }

// DisplayName resolves the name shown for an identifier. RFID tags
// without a directory entry become "RFID_<uid>"; Wi-Fi addresses are
// always "WiFiUser_" plus the last four characters of the address.
func (d *Directory) DisplayName(ns types.Namespace, id string) string {
	id = strings.ToUpper(id)
	if ns == types.NamespaceWifi {
		return "WiFiUser_" + tail(id, 4)
	}
	if name, ok := d.names[id]; ok && name != "" {
		return name
	}
	return "RFID_" + id
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
