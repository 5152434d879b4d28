package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const objectiveBinaryLogistic = "binary:logistic"

// xgbModelFile mirrors the parts of XGBoost's native JSON model we need
type xgbModelFile struct {
	Learner struct {
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumClass   string `json:"num_class"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []xgbTree `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flags     `json:"default_left"`
	SplitType       []int     `json:"split_type"`
}

// flags decodes default_left, which XGBoost writes as 0/1 or as booleans
type flags []bool

func (f *flags) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch val := r.(type) {
		case bool:
			out[i] = val
		case float64:
			out[i] = val != 0
		default:
			return fmt.Errorf("unexpected default_left value %v", r)
		}
	}
	*f = out
	return nil
}

type treeNode struct {
	left, right int
	feature     int
	threshold   float32
	defaultLeft bool
	leaf        float64
}

func (n *treeNode) isLeaf() bool {
	return n.left == -1
}

// Booster is a binary logistic gradient-boosted tree ensemble
type Booster struct {
	trees      [][]treeNode
	baseMargin float64
	numFeature int
}

// LoadBooster reads an XGBoost model saved with Booster.save_model("*.json")
func LoadBooster(path string) (*Booster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier: %w", err)
	}
	b, err := ParseBooster(data)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier %s: %w", path, err)
	}
	return b, nil
}

// ParseBooster decodes an XGBoost JSON model
func ParseBooster(data []byte) (*Booster, error) {
	var m xgbModelFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	learner := m.Learner
	if learner.Objective.Name != objectiveBinaryLogistic {
		return nil, fmt.Errorf("unsupported objective %q", learner.Objective.Name)
	}
	if name := learner.GradientBooster.Name; name != "" && name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}

	baseScore, err := parseXGBFloat(learner.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, fmt.Errorf("invalid base_score: %w", err)
	}
	if baseScore <= 0 || baseScore >= 1 {
		return nil, fmt.Errorf("base_score %v outside (0, 1)", baseScore)
	}

	b := &Booster{
		baseMargin: math.Log(baseScore / (1 - baseScore)),
	}
	if nf := learner.LearnerModelParam.NumFeature; nf != "" {
		if b.numFeature, err = strconv.Atoi(nf); err != nil {
			return nil, fmt.Errorf("invalid num_feature: %w", err)
		}
	}

	for i, t := range learner.GradientBooster.Model.Trees {
		nodes, err := buildTree(t)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		b.trees = append(b.trees, nodes)
	}
	if len(b.trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}

	return b, nil
}

func buildTree(t xgbTree) ([]treeNode, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return nil, fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n || len(t.DefaultLeft) != n {
		return nil, fmt.Errorf("inconsistent node arrays")
	}

	nodes := make([]treeNode, n)
	for i := 0; i < n; i++ {
		if len(t.SplitType) == n && t.SplitType[i] != 0 {
			return nil, fmt.Errorf("categorical split at node %d is not supported", i)
		}
		left, right := t.LeftChildren[i], t.RightChildren[i]
		if left != -1 && (left <= i || left >= n || right <= i || right >= n) {
			return nil, fmt.Errorf("node %d has invalid children %d/%d", i, left, right)
		}
		nodes[i] = treeNode{
			left:        left,
			right:       right,
			feature:     t.SplitIndices[i],
			threshold:   float32(t.SplitConditions[i]),
			defaultLeft: t.DefaultLeft[i],
			leaf:        t.SplitConditions[i],
		}
	}
	return nodes, nil
}

// parseXGBFloat handles both "5E-1" and the bracketed "[5E-1]" forms
func parseXGBFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(s, "[]"))
	if s == "" {
		return 0.5, nil
	}
	return strconv.ParseFloat(s, 64)
}

// NumFeature is the width of the rows the model was trained on, or 0 if unknown
func (b *Booster) NumFeature() int {
	return b.numFeature
}

// Margin returns the raw log-odds of the phishing class
func (b *Booster) Margin(x *SparseVector) (float64, error) {
	if b.numFeature > 0 && x.Dim != b.numFeature {
		return 0, fmt.Errorf("feature shape mismatch, expected: %d, got %d", b.numFeature, x.Dim)
	}

	features := x.Lookup()
	margin := b.baseMargin
	for _, tree := range b.trees {
		margin += predictTree(tree, features)
	}
	return margin, nil
}

// PredictProba returns [P(class 0), P(class 1)] for one row
func (b *Booster) PredictProba(x *SparseVector) ([]float64, error) {
	margin, err := b.Margin(x)
	if err != nil {
		return nil, err
	}
	p := 1 / (1 + math.Exp(-margin))
	return []float64{1 - p, p}, nil
}

// Predict returns the class for one row along with its class probabilities.
// Class 1 wins only when its probability is strictly above one half.
func (b *Booster) Predict(x *SparseVector) (int, []float64, error) {
	proba, err := b.PredictProba(x)
	if err != nil {
		return 0, nil, err
	}
	if proba[1] > 0.5 {
		return 1, proba, nil
	}
	return 0, proba, nil
}

func predictTree(nodes []treeNode, features map[int]float64) float64 {
	i := 0
	for {
		n := &nodes[i]
		if n.isLeaf() {
			return n.leaf
		}
		val, ok := features[n.feature]
		switch {
		case !ok:
			if n.defaultLeft {
				i = n.left
			} else {
				i = n.right
			}
		case float32(val) < n.threshold:
			i = n.left
		default:
			i = n.right
		}
	}
}
