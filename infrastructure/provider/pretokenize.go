package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/unicode/norm"
)

// PreTokenizer rewrites a text before it reaches the model's tokenizer.json.
type PreTokenizer interface {
	PreTokenize(text string) string
}

// PreTokenizerMode selects the PreTokenizer of a local model.
type PreTokenizerMode string

// PreTokenizerMode values.
const (
	// PreTokenizerAuto reads tokenizer_config.json: BertJapaneseTokenizer with
	// word_tokenizer_type "mecab" gets MeCab splitting, anything else none.
	PreTokenizerAuto PreTokenizerMode = "auto"
	// PreTokenizerMecab always splits into IPADIC morphemes.
	PreTokenizerMecab PreTokenizerMode = "mecab"
	// PreTokenizerNone passes text through untouched.
	PreTokenizerNone PreTokenizerMode = "none"
)

// MecabPreTokenizer reproduces the word step of BertJapaneseTokenizer with
// MeCab and IPADIC: the text is NFKC-normalized and split into morphemes,
// joined by single spaces so WordPiece sees one word at a time.
type MecabPreTokenizer struct {
	tokenizer *tokenizer.Tokenizer
}

// NewMecabPreTokenizer loads the IPA dictionary.
func NewMecabPreTokenizer() (*MecabPreTokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("create mecab tokenizer: %w", err)
	}
	return &MecabPreTokenizer{tokenizer: t}, nil
}

// PreTokenize returns the morphemes of text separated by spaces.
func (m *MecabPreTokenizer) PreTokenize(text string) string {
	words := m.tokenizer.Wakati(norm.NFKC.String(text))
	kept := words[:0]
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

type tokenizerConfig struct {
	TokenizerClass    string `json:"tokenizer_class"`
	WordTokenizerType string `json:"word_tokenizer_type"`
}

// preTokenizerFor builds the PreTokenizer mode asks for, reading the model's
// tokenizer_config.json in auto mode. A nil PreTokenizer means none.
func preTokenizerFor(mode PreTokenizerMode, modelPath string) (PreTokenizer, error) {
	switch mode {
	case PreTokenizerNone:
		return nil, nil
	case PreTokenizerMecab:
		return NewMecabPreTokenizer()
	case PreTokenizerAuto, "":
		if wordTokenizerType(modelPath) == "mecab" {
			return NewMecabPreTokenizer()
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown pre-tokenizer %q (want auto, mecab or none)", mode)
	}
}

// wordTokenizerType returns the word tokenizer a BertJapaneseTokenizer model
// declares, or "" for other tokenizers and unreadable configs.
func wordTokenizerType(modelPath string) string {
	data, err := os.ReadFile(filepath.Join(modelPath, "tokenizer_config.json"))
	if err != nil {
		return ""
	}
	var cfg tokenizerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	if cfg.TokenizerClass != "BertJapaneseTokenizer" {
		return ""
	}
	return cfg.WordTokenizerType
}
