// Package relevance decides whether a piece of social text is worth keeping.
//
// A blacklist hit always rejects. Otherwise at least one token of the text has
// to be part of the context vocabulary. Short hashtag-only posts without a
// supporting word are rejected as low signal.
package relevance

import (
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

// Filter is immutable once built and safe for concurrent use.
type Filter struct {
	blacklist       []string
	context         map[string]struct{}
	rejectProfanity bool
}

type Option func(*Filter)

// WithProfanityVeto makes profane text count as a blacklist hit.
func WithProfanityVeto() Option {
	return func(f *Filter) {
		f.rejectProfanity = true
	}
}

// Config selects the vocabulary and whether profanity vetoes.
type Config struct {
	VocabularyFile  string `env:"VOCABULARY_FILE"`
	RejectProfanity bool   `env:"REJECT_PROFANITY, default=false"`
}

// Load builds the filter a binary runs with: the vocabulary at
// cfg.VocabularyFile, or the embedded one when unset.
func Load(cfg Config) (*Filter, error) {
	vocab, err := LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.RejectProfanity {
		opts = append(opts, WithProfanityVeto())
	}

	return New(vocab, opts...), nil
}

func New(v Vocabulary, opts ...Option) *Filter {
	f := &Filter{
		blacklist: append([]string(nil), v.Blacklist...),
		context:   make(map[string]struct{}, len(v.Context)),
	}
	for _, term := range v.Context {
		f.context[term] = struct{}{}
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Filter) IsRelevant(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	lower := strings.ToLower(text)
	for _, term := range f.blacklist {
		if strings.Contains(lower, term) {
			return false
		}
	}
	if f.rejectProfanity && goaway.IsProfane(lower) {
		return false
	}

	for _, token := range tokenize(lower) {
		if _, ok := f.context[token]; ok {
			return true
		}
	}

	return false
}

// Splits on anything that isn't a letter or a digit, so "#MLC2025!" yields "mlc2025".
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
