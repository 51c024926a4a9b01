// Package curriculum loads the exam topic catalog.
package curriculum

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// TopicColumn is the required column of tabular catalogs.
const TopicColumn = "Argomento"

// ErrMissingColumn is returned when a tabular catalog has no Argomento column.
var ErrMissingColumn = errors.New("curriculum: missing " + TopicColumn + " column")

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("curriculum: unsupported catalog format")

// catalogSchema validates YAML catalogs after decoding.
const catalogSchema = `{
	"type": "object",
	"required": ["topics"],
	"additionalProperties": false,
	"properties": {
		"title": {"type": "string"},
		"topics": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		},
		"categories": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "topics"],
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"topics": {"type": "array", "items": {"type": "string", "minLength": 1}}
				}
			}
		}
	}
}`

type yamlCatalog struct {
	Title      string   `yaml:"title"`
	Topics     []string `yaml:"topics"`
	Categories []struct {
		Name   string   `yaml:"name"`
		Topics []string `yaml:"topics"`
	} `yaml:"categories"`
}

// Load reads a catalog from a .csv, .xlsx or .yaml/.yml file.
func Load(path string) (*Catalog, error) {
	var (
		names []string
		err   error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		names, err = loadCSVFile(path)
	case ".xlsx":
		names, err = loadXLSX(path)
	case ".yaml", ".yml":
		names, err = loadYAMLFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}

	c := NewCatalog(names)
	if dropped := len(names) - c.Len(); dropped > 0 {
		slog.Warn("catalog has blank or duplicate topics", "path", path, "dropped", dropped)
	}
	slog.Info("catalog loaded", "path", path, "topics", c.Len())
	return c, nil
}

func loadCSVFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads topic names from the Argomento column of a CSV stream.
func ReadCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return topicColumn(records)
}

func loadXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return topicColumn(rows)
}

func topicColumn(records [][]string) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrMissingColumn
	}
	col := -1
	for i, h := range records[0] {
		// Spreadsheet exports sometimes carry a BOM on the first header.
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == TopicColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrMissingColumn
	}

	names := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if col < len(rec) {
			names = append(names, rec[col])
		}
	}
	return names, nil
}

func loadYAMLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML validates a YAML catalog against the catalog schema and returns
// its topic names: plain topics first, then "Category: Topic" for each
// categorised entry.
func ParseYAML(data []byte) ([]string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(msgs, "; "))
	}

	var cat yamlCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	names := append([]string(nil), cat.Topics...)
	for _, c := range cat.Categories {
		for _, t := range c.Topics {
			names = append(names, c.Name+": "+t)
		}
	}
	return names, nil
}
