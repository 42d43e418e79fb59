package relevance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRelevant(t *testing.T) {
	f := New(DefaultVocabulary())

	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: false},
		{name: "whitespace", text: "   \n", want: false},
		{name: "context word", text: "What a match in Dallas tonight", want: true},
		{name: "case insensitive context", text: "CRICKET is back", want: true},
		{name: "campaign hashtag validates itself", text: "#MLC2025", want: true},
		{name: "hashtag glued to punctuation", text: "Watching the #T20Cricket!!", want: true},
		{name: "bare bbl tag is low signal", text: "#BBL", want: false},
		{name: "bbl with supporting word", text: "#BBL final tonight", want: true},
		{name: "no context", text: "Sunny days in Texas", want: false},
		{name: "context only as substring", text: "Matches matching matchmaker", want: false},
		{name: "blacklist wins over context", text: "Huge giveaway for the cricket final", want: false},
		{name: "blacklist is case insensitive", text: "CASINO night after the MATCH", want: false},
		{name: "multi word blacklist", text: "DM for betting id, cricket match fixed", want: false},
		{name: "blacklist as substring", text: "Nobody expected that wicket", want: false},
		{name: "surgery noise on the bbl tag", text: "BBL surgery results in one week", want: false},
		{name: "angle bracket between teams", text: "Pak<Ind cricket match tonight", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsRelevant(tt.text))
		})
	}
}

func TestIsRelevant_BlacklistAlwaysVetoes(t *testing.T) {
	var (
		v = DefaultVocabulary()
		f = New(v)
	)

	// Every context term is present, yet a single blacklisted term rejects.
	for _, term := range v.Blacklist {
		text := "cricket match wicket century " + term + " final"
		assert.False(t, f.IsRelevant(text), "term %q should veto", term)
	}
}

func TestIsRelevant_ProfanityVeto(t *testing.T) {
	const text = "what a shit match that was"

	assert.True(t, New(DefaultVocabulary()).IsRelevant(text))
	assert.False(t, New(DefaultVocabulary(), WithProfanityVeto()).IsRelevant(text))
}

func TestParseVocabulary(t *testing.T) {
	v, err := ParseVocabulary([]byte(`
blacklist: ["  Casino ", ""]
context: [Cricket, "  "]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"casino"}, v.Blacklist)
	assert.Equal(t, []string{"cricket"}, v.Context)

	_, err = ParseVocabulary([]byte(`blacklist: [casino]`))
	assert.Error(t, err)

	_, err = ParseVocabulary([]byte(`context: {not: a list}`))
	assert.Error(t, err)
}

func TestLoadVocabulary(t *testing.T) {
	v, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.Contains(t, v.Context, "cricket")
	assert.Contains(t, v.Blacklist, "giveaway")
	assert.NotContains(t, v.Context, "bbl")

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("context: [baseball]\n"), 0o600))

	v, err = LoadVocabulary(path)
	require.NoError(t, err)
	f := New(v)
	assert.True(t, f.IsRelevant("Baseball tonight"))
	assert.False(t, f.IsRelevant("Cricket tonight"))

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	f, err := Load(Config{})
	require.NoError(t, err)
	assert.True(t, f.IsRelevant("cricket tonight"))
	assert.True(t, f.IsRelevant("shit, what a cricket match"))

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("context: [kabaddi]\n"), 0o600))
	f, err = Load(Config{VocabularyFile: path, RejectProfanity: true})
	require.NoError(t, err)
	assert.True(t, f.IsRelevant("kabaddi final"))
	assert.False(t, f.IsRelevant("cricket tonight"))
	assert.False(t, f.IsRelevant("shit, what a kabaddi final"))

	_, err = Load(Config{VocabularyFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
