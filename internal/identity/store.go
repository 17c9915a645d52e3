package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const recordExt = ".json"

// reservedNameChars never appear in enrolled names; fileName replaces
// them only for records written directly through a Store.
const reservedNameChars = "/\\:*?\"<>|\x00"

// DirStore keeps one JSON file per identity in Dir.
type DirStore struct {
	Dir string
}

func (s DirStore) Load() ([]Record, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExt {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			return nil, err
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if rec.Name == "" {
			rec.Name = strings.TrimSuffix(e.Name(), recordExt)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save writes through a temp file so a crash never leaves half a record.
func (s DirStore) Save(rec Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.Dir, fileName(rec.Name))
	tmp, err := os.CreateTemp(s.Dir, ".record-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func fileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedNameChars, r) {
			return '_'
		}
		return r
	}, name)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		clean = "_"
	}
	return clean + recordExt
}
