// Package lexicon holds the static keyword tables that drive relevance
// classification. A Lexicon is immutable once built; accessors return copies.
package lexicon

import (
	"fmt"
	"strings"
)

type Category struct {
	Name     string
	Weight   float64
	Keywords []string
}

// Lexicon is the validated, normalized form of a set of Tables.
type Lexicon struct {
	version          string
	categories       []Category
	keywords         []string
	highValue        []string
	breakthrough     []string
	secondary        []string
	canonicalMarkers []string
	coreTitleTerms   []string
	investment       []string
	productLaunch    []string
}

type Stats struct {
	Version          string `json:"version"`
	Categories       int    `json:"categories"`
	TotalKeywords    int    `json:"total_keywords"`
	HighValue        int    `json:"high_value_keywords"`
	Breakthrough     int    `json:"breakthrough_keywords"`
	Secondary        int    `json:"secondary_keywords"`
	CanonicalMarkers int    `json:"canonical_markers"`
	Investment       int    `json:"investment_keywords"`
	ProductLaunch    int    `json:"product_launch_keywords"`
}

// New validates t and builds a Lexicon from it. Keywords are lower-cased,
// trimmed and deduplicated within their set; enumeration order is preserved.
func New(t Tables) (*Lexicon, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	lex := &Lexicon{
		version:          strings.TrimSpace(t.Version),
		highValue:        normalize(t.HighValue),
		breakthrough:     normalize(t.Breakthrough),
		secondary:        normalize(t.Secondary),
		canonicalMarkers: normalize(t.CanonicalMarkers),
		coreTitleTerms:   normalize(t.CoreTitleTerms),
		investment:       normalize(t.Investment),
		productLaunch:    normalize(t.ProductLaunch),
	}

	var all []string
	for _, c := range t.Categories {
		kws := normalize(c.Keywords)
		lex.categories = append(lex.categories, Category{
			Name:     strings.TrimSpace(c.Name),
			Weight:   c.Weight,
			Keywords: kws,
		})
		all = append(all, kws...)
	}
	lex.keywords = normalize(all)

	return lex, nil
}

// MustNew is New for tables known to be valid at compile time.
func MustNew(t Tables) *Lexicon {
	lex, err := New(t)
	if err != nil {
		panic(fmt.Sprintf("lexicon: %v", err))
	}
	return lex
}

func (l *Lexicon) Version() string { return l.version }

func (l *Lexicon) Categories() []Category {
	out := make([]Category, len(l.categories))
	for i, c := range l.categories {
		out[i] = Category{Name: c.Name, Weight: c.Weight, Keywords: clone(c.Keywords)}
	}
	return out
}

// CategoryNames returns category names in enumeration order.
func (l *Lexicon) CategoryNames() []string {
	names := make([]string, len(l.categories))
	for i, c := range l.categories {
		names[i] = c.Name
	}
	return names
}

// Keywords returns the distinct union of all category keywords.
func (l *Lexicon) Keywords() []string         { return clone(l.keywords) }
func (l *Lexicon) HighValue() []string        { return clone(l.highValue) }
func (l *Lexicon) Breakthrough() []string     { return clone(l.breakthrough) }
func (l *Lexicon) Secondary() []string        { return clone(l.secondary) }
func (l *Lexicon) CanonicalMarkers() []string { return clone(l.canonicalMarkers) }
func (l *Lexicon) CoreTitleTerms() []string   { return clone(l.coreTitleTerms) }
func (l *Lexicon) Investment() []string       { return clone(l.investment) }
func (l *Lexicon) ProductLaunch() []string    { return clone(l.productLaunch) }

func (l *Lexicon) Stats() Stats {
	return Stats{
		Version:          l.version,
		Categories:       len(l.categories),
		TotalKeywords:    len(l.keywords),
		HighValue:        len(l.highValue),
		Breakthrough:     len(l.breakthrough),
		Secondary:        len(l.secondary),
		CanonicalMarkers: len(l.canonicalMarkers),
		Investment:       len(l.investment),
		ProductLaunch:    len(l.productLaunch),
	}
}

// Tables returns the lexicon in its serializable form.
func (l *Lexicon) Tables() Tables {
	t := Tables{
		Version:          l.version,
		HighValue:        clone(l.highValue),
		Breakthrough:     clone(l.breakthrough),
		Secondary:        clone(l.secondary),
		CanonicalMarkers: clone(l.canonicalMarkers),
		CoreTitleTerms:   clone(l.coreTitleTerms),
		Investment:       clone(l.investment),
		ProductLaunch:    clone(l.productLaunch),
	}
	for _, c := range l.categories {
		t.Categories = append(t.Categories, CategoryTable{
			Name:     c.Name,
			Weight:   c.Weight,
			Keywords: clone(c.Keywords),
		})
	}
	return t
}

func normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
