// Package export serializes settings to portable record lists and feeds them
// back through the engine. JSON is the canonical encoding; YAML and CSV are
// alternatives, each optionally gzip-compressed. Imports run through the
// engine's bulk set so validation, events and cache coherency apply.
package export

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/scope"
)

// Record types.
const (
	TypeGlobal = "global"
	TypeModel  = "model"
)

// Format selects the record encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat is returned for encodings this package does not speak.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a user-supplied format name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatJSON, FormatYAML, FormatCSV:
		return Format(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Record is one portable setting.
type Record struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Type        string `json:"type" yaml:"type"`
	ModelClass  string `json:"model_class,omitempty" yaml:"model_class,omitempty"`
	ModelID     string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Scope returns the scope a record belongs to.
func (r Record) Scope() scope.Scope {
	if r.Type == TypeModel {
		return scope.Owned(r.ModelClass, r.ModelID)
	}

	return scope.Global()
}

// FromSettings converts persisted rows into portable records.
func FromSettings(settings []models.Setting) ([]Record, error) {
	records := make([]Record, 0, len(settings))

	for _, s := range settings {
		var value any
		if err := json.Unmarshal(s.Value, &value); err != nil {
			return nil, fmt.Errorf("setting %q holds invalid JSON: %w", s.Key, err)
		}

		record := Record{
			Key:         s.Key,
			Value:       value,
			Type:        TypeGlobal,
			Name:        s.Name,
			Description: s.Description,
		}

		if s.OwnerType != "" {
			record.Type = TypeModel
			record.ModelClass = s.OwnerType
			record.ModelID = s.OwnerID
		}

		records = append(records, record)
	}

	return records, nil
}

// Encode writes records to w in the given format, gzip-compressed when
// compress is set.
func Encode(w io.Writer, records []Record, format Format, compress bool) error {
	if compress {
		gz := gzip.NewWriter(w)
		if err := encode(gz, records, format); err != nil {
			_ = gz.Close()
			return err
		}

		return gz.Close()
	}

	return encode(w, records, format)
}

// Decode reads records from r in the given format, expecting gzip input when
// compressed is set.
func Decode(r io.Reader, format Format, compressed bool) ([]Record, error) {
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()

		r = gz
	}

	return decode(r, format)
}

// Apply imports records through the engine, one all-or-nothing bulk set per
// scope. Records carrying metadata get a follow-up write so name and
// description land too.
func Apply(e *engine.Engine, records []Record) error {
	type group struct {
		sc     scope.Scope
		values map[string]any
	}

	groups := make(map[string]*group)

	for _, r := range records {
		sc := r.Scope()

		g, ok := groups[sc.String()]
		if !ok {
			g = &group{sc: sc, values: make(map[string]any)}
			groups[sc.String()] = g
		}

		g.values[r.Key] = r.Value
	}

	for _, g := range groups {
		if err := e.SetMany(g.sc, g.values); err != nil {
			return err
		}
	}

	for _, r := range records {
		if r.Name == "" && r.Description == "" {
			continue
		}

		name, description := r.Name, r.Description
		if err := e.SetWithMeta(r.Scope(), r.Key, r.Value, &name, &description); err != nil {
			return err
		}
	}

	return nil
}

func encode(w io.Writer, records []Record, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(records); err != nil {
			return err
		}

		return enc.Close()
	case FormatCSV:
		return encodeCSV(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decode(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatJSON:
		var records []Record
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, err
		}

		return records, nil
	case FormatYAML:
		var records []Record
		if err := yaml.NewDecoder(r).Decode(&records); err != nil {
			return nil, err
		}

		// yaml.v3 decodes numbers as int; the rest of the system lives in
		// the canonical JSON type space, so round-trip every value.
		for i := range records {
			value, err := normalizeValue(records[i].Value)
			if err != nil {
				return nil, fmt.Errorf("record %q: %w", records[i].Key, err)
			}

			records[i].Value = value
		}

		return records, nil
	case FormatCSV:
		return decodeCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// normalizeValue maps a decoded value onto the canonical JSON types
// (float64 numbers, map[string]any objects).
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// csvHeader defines the CSV column layout; the value column holds the
// canonical JSON encoding of the value.
var csvHeader = []string{"key", "value", "type", "model_class", "model_id", "name", "description"}

func encodeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("record %q: %w", r.Key, err)
		}

		row := []string{r.Key, string(value), r.Type, r.ModelClass, r.ModelID, r.Name, r.Description}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func decodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	// Skip the header row.
	records := make([]Record, 0, len(rows)-1)

	for _, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("csv row has %d columns, want %d", len(row), len(csvHeader))
		}

		var value any
		if err := json.Unmarshal([]byte(row[1]), &value); err != nil {
			return nil, fmt.Errorf("csv row %q holds invalid JSON value: %w", row[0], err)
		}

		records = append(records, Record{
			Key:         row[0],
			Value:       value,
			Type:        row[2],
			ModelClass:  row[3],
			ModelID:     row[4],
			Name:        row[5],
			Description: row[6],
		})
	}

	return records, nil
}
