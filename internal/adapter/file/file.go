// Package file reads and writes case-study metadata and grid files.
package file

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// LoadCaseStudy decodes case-study metadata. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON.
func LoadCaseStudy(path string) (*domain.CaseStudy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case study: %w", err)
	}

	var cs domain.CaseStudy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cs)
	default:
		err = json.Unmarshal(data, &cs)
	}
	if err != nil {
		return nil, fmt.Errorf("decode case study %s: %w", path, err)
	}
	return &cs, nil
}

// LoadGrid decodes a grid file produced by cmd/preprocess.
func LoadGrid(path string, logger *slog.Logger) (*domain.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()

	var g domain.Grid
	if err := json.NewDecoder(f).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode grid %s: %w", path, err)
	}

	if info, err := f.Stat(); err == nil {
		logger.Info("grid file decoded",
			"path", path,
			"size", humanize.Bytes(uint64(info.Size())),
			"segments", len(g.Densities),
		)
	}
	return &g, nil
}

// WriteGrid encodes g to path, replacing any existing file.
func WriteGrid(path string, g *domain.Grid) (int64, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return 0, fmt.Errorf("encode grid: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // output is a public data file
		return 0, fmt.Errorf("write grid: %w", err)
	}
	return int64(len(data)), nil
}
