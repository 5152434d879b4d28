package inference

import (
	"encoding/json"
	"fmt"
	"os"
)

// OneHotConfig is the exported state of a fitted single-column one-hot encoder
type OneHotConfig struct {
	Categories []string `json:"categories"`
}

// OneHotEncoder maps a category onto an indicator block. Unknown categories
// produce an all-zero block.
type OneHotEncoder struct {
	columns map[string]int
	width   int
}

// NewOneHotEncoder builds an encoder from the fitted category list
func NewOneHotEncoder(cfg *OneHotConfig) (*OneHotEncoder, error) {
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("encoder has no categories")
	}
	e := &OneHotEncoder{
		columns: make(map[string]int, len(cfg.Categories)),
		width:   len(cfg.Categories),
	}
	for i, c := range cfg.Categories {
		if _, dup := e.columns[c]; dup {
			return nil, fmt.Errorf("duplicate category %q", c)
		}
		e.columns[c] = i
	}
	return e, nil
}

// LoadOneHotEncoder reads an exported encoder from a JSON file
func LoadOneHotEncoder(path string) (*OneHotEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder: %w", err)
	}
	var cfg OneHotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode encoder %s: %w", path, err)
	}
	e, err := NewOneHotEncoder(&cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid encoder %s: %w", path, err)
	}
	return e, nil
}

// Width is the number of columns the encoder produces
func (e *OneHotEncoder) Width() int {
	return e.width
}

// Transform encodes one category value
func (e *OneHotEncoder) Transform(category string) *SparseVector {
	v := &SparseVector{Dim: e.width}
	if col, ok := e.columns[category]; ok {
		v.Indices = []int{col}
		v.Values = []float64{1}
	}
	return v
}
