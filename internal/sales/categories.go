package sales

import (
	"errors"
	"strings"
)

// DefaultCategories is the reference rubro list.
var DefaultCategories = []string{"Maquillaje", "Renacer", "Tendencia", "Accesorios", "Zapatos"}

// Vocabulary is the fixed, ordered set of category tags ("rubros") a sale can
// carry. It is immutable once built and shared by validation and aggregation.
type Vocabulary struct {
	names []string
	index map[string]struct{}
}

// NewVocabulary builds a vocabulary, trimming names and dropping blanks and duplicates.
func NewVocabulary(names ...string) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := v.index[n]; dup {
			continue
		}
		v.index[n] = struct{}{}
		v.names = append(v.names, n)
	}
	if len(v.names) == 0 {
		return nil, errors.New("category vocabulary cannot be empty")
	}
	return v, nil
}

// DefaultVocabulary returns the vocabulary built from DefaultCategories.
func DefaultVocabulary() *Vocabulary {
	v, _ := NewVocabulary(DefaultCategories...)
	return v
}

// Names returns the categories in their configured order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// Filter keeps the known tags of input, without duplicates, in input order.
func (v *Vocabulary) Filter(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	out := make([]string, 0, len(input))
	for _, tag := range input {
		tag = strings.TrimSpace(tag)
		if !v.Contains(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
