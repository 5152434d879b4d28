package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tokenPattern matches runs of two or more word characters
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// TfidfConfig is the exported state of a fitted TF-IDF vectorizer
type TfidfConfig struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	Lowercase   *bool          `json:"lowercase"`
	StopWords   []string       `json:"stop_words"`
	NgramRange  []int          `json:"ngram_range"`
	Norm        *string        `json:"norm"`
	SublinearTF bool           `json:"sublinear_tf"`
	UseIDF      *bool          `json:"use_idf"`
}

// TfidfVectorizer maps text onto a fitted vocabulary weighted by inverse document frequency
type TfidfVectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	lowercase   bool
	stopWords   map[string]struct{}
	minN, maxN  int
	norm        string
	sublinearTF bool
	useIDF      bool
}

// NewTfidfVectorizer validates an exported vectorizer and prepares it for use
func NewTfidfVectorizer(cfg *TfidfConfig) (*TfidfVectorizer, error) {
	if len(cfg.Vocabulary) == 0 {
		return nil, fmt.Errorf("vectorizer has an empty vocabulary")
	}

	v := &TfidfVectorizer{
		vocabulary:  cfg.Vocabulary,
		idf:         cfg.IDF,
		lowercase:   true,
		stopWords:   make(map[string]struct{}, len(cfg.StopWords)),
		minN:        1,
		maxN:        1,
		norm:        "l2",
		sublinearTF: cfg.SublinearTF,
		useIDF:      true,
	}
	if cfg.Lowercase != nil {
		v.lowercase = *cfg.Lowercase
	}
	if cfg.Norm != nil {
		v.norm = *cfg.Norm
	}
	if cfg.UseIDF != nil {
		v.useIDF = *cfg.UseIDF
	}
	for _, w := range cfg.StopWords {
		v.stopWords[w] = struct{}{}
	}

	if len(cfg.NgramRange) == 2 {
		v.minN, v.maxN = cfg.NgramRange[0], cfg.NgramRange[1]
	}
	if v.minN < 1 || v.maxN < v.minN {
		return nil, fmt.Errorf("invalid ngram range %v", cfg.NgramRange)
	}

	switch v.norm {
	case "l1", "l2", "":
	default:
		return nil, fmt.Errorf("unsupported norm %q", v.norm)
	}

	for term, col := range v.vocabulary {
		if col < 0 || col >= len(v.vocabulary) {
			return nil, fmt.Errorf("term %q maps to column %d outside vocabulary of %d", term, col, len(v.vocabulary))
		}
	}
	if v.useIDF && len(v.idf) != len(v.vocabulary) {
		return nil, fmt.Errorf("idf has %d weights for a vocabulary of %d", len(v.idf), len(v.vocabulary))
	}

	return v, nil
}

// LoadTfidfVectorizer reads an exported vectorizer from a JSON file
func LoadTfidfVectorizer(path string) (*TfidfVectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectorizer: %w", err)
	}
	var cfg TfidfConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode vectorizer %s: %w", path, err)
	}
	v, err := NewTfidfVectorizer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid vectorizer %s: %w", path, err)
	}
	return v, nil
}

// Width is the number of columns the vectorizer produces
func (v *TfidfVectorizer) Width() int {
	return len(v.vocabulary)
}

// Transform converts a document into its TF-IDF row
func (v *TfidfVectorizer) Transform(text string) (*SparseVector, error) {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if col, ok := v.vocabulary[term]; ok {
			counts[col]++
		}
	}

	for col, tf := range counts {
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.useIDF {
			tf *= v.idf[col]
		}
		counts[col] = tf
	}

	var norm float64
	switch v.norm {
	case "l2":
		for _, w := range counts {
			norm += w * w
		}
		norm = math.Sqrt(norm)
	case "l1":
		for _, w := range counts {
			norm += math.Abs(w)
		}
	}
	if norm > 0 {
		for col := range counts {
			counts[col] /= norm
		}
	}

	return NewSparseVector(v.Width(), counts)
}

// analyze lowercases, tokenizes, drops stop words and builds n-grams
func (v *TfidfVectorizer) analyze(text string) []string {
	if v.lowercase {
		text = cases.Lower(language.Und).String(text)
	}

	raw := tokenPattern.FindAllString(text, -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, stop := v.stopWords[t]; !stop {
			tokens = append(tokens, t)
		}
	}

	if v.minN == 1 && v.maxN == 1 {
		return tokens
	}

	var terms []string
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
