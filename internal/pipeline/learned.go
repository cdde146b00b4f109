package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
)

// WriteTables encodes tables in the grouped shape
// ({table: [{canonical, aliases}]}) as JSON or YAML.
func WriteTables(w io.Writer, tables lookup.Tables, f config.Format) error {
	if tables == nil {
		tables = lookup.Tables{}
	}
	switch f {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tables); err != nil {
			return fmt.Errorf("encode tables: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			return fmt.Errorf("encode tables: %w", err)
		}
		return nil
	}
}

// writeLearned replaces path with the learned aliases. The file is written
// next to path and renamed so readers never see a partial file.
func writeLearned(path string, tables lookup.Tables) error {
	var buf bytes.Buffer
	if err := WriteTables(&buf, tables, config.FormatFromPath(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".learned-*")
	if err != nil {
		return fmt.Errorf("write learned: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write learned: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write learned: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write learned: %w", err)
	}
	return nil
}
