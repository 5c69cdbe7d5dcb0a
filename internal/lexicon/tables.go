package lexicon

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTables = errors.New("invalid lexicon tables")

type CategoryTable struct {
	Name     string   `yaml:"name" json:"name"`
	Weight   float64  `yaml:"weight" json:"weight"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Tables is the on-disk and over-the-wire representation of a lexicon.
type Tables struct {
	Version          string          `yaml:"version" json:"version"`
	Categories       []CategoryTable `yaml:"categories" json:"categories"`
	HighValue        []string        `yaml:"high_value" json:"high_value"`
	Breakthrough     []string        `yaml:"breakthrough" json:"breakthrough"`
	Secondary        []string        `yaml:"secondary" json:"secondary"`
	CanonicalMarkers []string        `yaml:"canonical_markers" json:"canonical_markers"`
	CoreTitleTerms   []string        `yaml:"core_title_terms" json:"core_title_terms"`
	Investment       []string        `yaml:"investment" json:"investment"`
	ProductLaunch    []string        `yaml:"product_launch" json:"product_launch"`
}

func (t Tables) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidTables)
	}

	names := make(map[string]struct{}, len(t.Categories))
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalidTables, i)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidTables, name)
		}
		names[name] = struct{}{}
		if c.Weight <= 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return fmt.Errorf("%w: category %q has non-positive weight %v", ErrInvalidTables, name, c.Weight)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("%w: category %q has no keywords", ErrInvalidTables, name)
		}
		if err := checkKeywords("category "+name, c.Keywords); err != nil {
			return err
		}
	}

	sets := []struct {
		name string
		kws  []string
	}{
		{"high_value", t.HighValue},
		{"breakthrough", t.Breakthrough},
		{"secondary", t.Secondary},
		{"canonical_markers", t.CanonicalMarkers},
		{"core_title_terms", t.CoreTitleTerms},
		{"investment", t.Investment},
		{"product_launch", t.ProductLaunch},
	}
	for _, s := range sets {
		if err := checkKeywords(s.name, s.kws); err != nil {
			return err
		}
	}

	return nil
}

func checkKeywords(set string, kws []string) error {
	for i, kw := range kws {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("%w: %s keyword %d is empty", ErrInvalidTables, set, i)
		}
	}
	return nil
}

// Load decodes YAML tables from r and builds a Lexicon.
func Load(r io.Reader) (*Lexicon, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon: %w", err)
	}
	return New(t)
}

// LoadFile reads a lexicon from path. An empty path yields Default().
func LoadFile(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (l *Lexicon) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l.Tables()); err != nil {
		return fmt.Errorf("failed to encode lexicon: %w", err)
	}
	return enc.Close()
}
