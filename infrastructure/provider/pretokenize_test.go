package provider

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMecabPreTokenizer(t *testing.T) {
	preTok, err := NewMecabPreTokenizer()
	require.NoError(t, err)

	assert.Equal(t, "すもも も もも も もも の うち", preTok.PreTokenize("すもももももももものうち"))
	assert.Equal(t, "", preTok.PreTokenize(""))

	spaced := preTok.PreTokenize("  今日は　晴れ ")
	assert.Equal(t, strings.TrimSpace(spaced), spaced)
	assert.NotContains(t, spaced, "  ")
	assert.NotContains(t, spaced, "　", "full-width space is normalized away")

	// NFKC folds full-width alphanumerics before splitting.
	folded := preTok.PreTokenize("ＡＢＣ")
	assert.Contains(t, folded, "ABC")
	assert.NotContains(t, folded, "Ａ")
}

func TestPreTokenizerFor(t *testing.T) {
	writeTokenizerConfig := func(t *testing.T, body string) string {
		t.Helper()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer_config.json"), []byte(body), 0o644))
		return dir
	}

	mecabDir := writeTokenizerConfig(t, `{"tokenizer_class":"BertJapaneseTokenizer","word_tokenizer_type":"mecab"}`)
	basicDir := writeTokenizerConfig(t, `{"tokenizer_class":"BertJapaneseTokenizer","word_tokenizer_type":"basic"}`)
	bertDir := writeTokenizerConfig(t, `{"tokenizer_class":"BertTokenizer","do_lower_case":true}`)
	brokenDir := writeTokenizerConfig(t, `{not json`)
	emptyDir := t.TempDir()

	tests := []struct {
		name      string
		mode      PreTokenizerMode
		dir       string
		wantMecab bool
	}{
		{"auto mecab model", PreTokenizerAuto, mecabDir, true},
		{"default mode is auto", "", mecabDir, true},
		{"auto basic japanese", PreTokenizerAuto, basicDir, false},
		{"auto plain bert", PreTokenizerAuto, bertDir, false},
		{"auto unreadable config", PreTokenizerAuto, brokenDir, false},
		{"auto missing config", PreTokenizerAuto, emptyDir, false},
		{"forced mecab", PreTokenizerMecab, bertDir, true},
		{"none on mecab model", PreTokenizerNone, mecabDir, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preTok, err := preTokenizerFor(tt.mode, tt.dir)
			require.NoError(t, err)
			if tt.wantMecab {
				require.IsType(t, &MecabPreTokenizer{}, preTok)
			} else {
				require.Nil(t, preTok)
			}
		})
	}

	_, err := preTokenizerFor(PreTokenizerMode("sudachi"), mecabDir)
	require.ErrorContains(t, err, "unknown pre-tokenizer")
}
