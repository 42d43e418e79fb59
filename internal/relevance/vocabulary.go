package relevance

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary is the pair of term lists the filter classifies with.
type Vocabulary struct {
	Blacklist []string `yaml:"blacklist"`
	Context   []string `yaml:"context"`
}

// DefaultVocabulary returns the vocabulary compiled into the binary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %s", err))
	}

	return v
}

// LoadVocabulary reads a vocabulary from a YAML file. An empty path yields the
// default vocabulary.
func LoadVocabulary(path string) (Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary(), nil
	}

	byts, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("error reading vocabulary: %w", err)
	}

	return ParseVocabulary(byts)
}

func ParseVocabulary(byts []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(byts, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("error parsing vocabulary: %w", err)
	}

	v.Blacklist = normalizeTerms(v.Blacklist)
	v.Context = normalizeTerms(v.Context)
	if len(v.Context) == 0 {
		return Vocabulary{}, errors.New("vocabulary needs at least one context term")
	}

	return v, nil
}

// Lower-cases and trims terms, dropping blanks.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}

	return out
}
