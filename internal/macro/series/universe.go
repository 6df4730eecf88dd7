package series

import (
	"context"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldSpec describes one identifier field and where its codes come from.
// Inline Codes win over Source.
type FieldSpec struct {
	Name       string   `yaml:"name" validate:"required"`
	Width      int      `yaml:"width" validate:"min=1"`
	Charset    Charset  `yaml:"charset" validate:"required,oneof=digit alpha alnum"`
	Codes      []string `yaml:"codes"`
	Source     string   `yaml:"source" validate:"required_without=Codes"`
	CodeColumn string   `yaml:"code_column"`
	NameColumn string   `yaml:"name_column"`
}

// Universe is one classification universe: a grammar plus the code lists
// whose cross product yields candidate identifiers.
type Universe struct {
	Name               string      `yaml:"name" validate:"required"`
	SeriesType         string      `yaml:"series_type"`
	Survey             string      `yaml:"survey"`
	Frequency          string      `yaml:"frequency" validate:"required,oneof=M Q S A"`
	SeasonallyAdjusted bool        `yaml:"seasonally_adjusted"`
	Prefix             string      `yaml:"prefix" validate:"required"`
	Fields             []FieldSpec `yaml:"fields" validate:"required,min=1,dive"`
}

// File is the on-disk universe configuration. Earlier universes win when
// two produce the same identifier.
type File struct {
	Universes []Universe `yaml:"universes" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseFile decodes and validates universe YAML.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "series: decode universes")
	}
	if err := validate.Struct(&f); err != nil {
		return nil, eris.Wrap(err, "series: invalid universes")
	}
	seen := make(map[string]struct{}, len(f.Universes))
	for _, u := range f.Universes {
		if _, dup := seen[u.Name]; dup {
			return nil, eris.Errorf("series: duplicate universe %q", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return &f, nil
}

// LoadFile reads universe YAML from path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "series: read %s", path)
	}
	return ParseFile(data)
}

// Find returns the named universe.
func (f *File) Find(name string) (Universe, bool) {
	for _, u := range f.Universes {
		if u.Name == name {
			return u, true
		}
	}
	return Universe{}, false
}

// Grammar returns the identifier grammar of the universe.
func (u Universe) Grammar() Grammar {
	g := Grammar{Prefix: u.Prefix, Fields: make([]Field, len(u.Fields))}
	for i, f := range u.Fields {
		g.Fields[i] = Field{Name: f.Name, Width: f.Width, Charset: f.Charset}
	}
	return g
}

// CodeLoader fetches a code list from an external source (file path or URL).
type CodeLoader interface {
	LoadCodes(ctx context.Context, source, codeColumn, nameColumn string) ([]Code, error)
}

// CodeLists returns one code list per field. Inline codes are used as-is;
// a field with a Source is fetched through loader.
func (u Universe) CodeLists(ctx context.Context, loader CodeLoader) ([][]Code, error) {
	lists := make([][]Code, len(u.Fields))
	for i, f := range u.Fields {
		if len(f.Codes) > 0 {
			lists[i] = make([]Code, len(f.Codes))
			for j, c := range f.Codes {
				lists[i][j] = Code{Value: strings.TrimSpace(c)}
			}
			continue
		}
		if loader == nil {
			return nil, eris.Errorf("series: universe %s field %s needs a code loader", u.Name, f.Name)
		}
		codes, err := loader.LoadCodes(ctx, f.Source, f.CodeColumn, f.NameColumn)
		if err != nil {
			return nil, eris.Wrapf(err, "series: load codes for %s.%s", u.Name, f.Name)
		}
		lists[i] = codes
	}
	return lists, nil
}
