package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// topContributors caps the explanation set handed to the narration prompt.
const topContributors = 3

// SchemaMismatchError reports a feature vector that does not match the
// classifier's expected input schema.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: %s", e.Reason)
}

// Contribution is one feature's signed additive contribution to the
// predicted fault risk. Positive values increase the risk.
type Contribution struct {
	Feature   string  `json:"feature"`
	ShapValue float64 `json:"shap_value"`
}

// Classifier is a pre-trained logistic fault classifier with a baseline for
// local attribution. The score is intercept + Σ weight_i·x_i; attribution
// for feature i is weight_i·(x_i − mean_i), which for a linear score is the
// exact Shapley value of that feature against the training baseline.
type Classifier struct {
	names     []string
	weights   []float64
	means     []float64
	intercept float64
}

type artifactFeature struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Mean   float64 `json:"mean"`
}

type artifact struct {
	ModelType string            `json:"model_type"`
	Intercept float64           `json:"intercept"`
	Features  []artifactFeature `json:"features"`
}

// Load reads a classifier artifact from disk.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a JSON classifier artifact.
func Parse(data []byte) (*Classifier, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}

	if a.ModelType != "" && a.ModelType != "logistic" {
		return nil, fmt.Errorf("unsupported model_type %q", a.ModelType)
	}
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("artifact declares no features")
	}

	c := &Classifier{
		names:     make([]string, len(a.Features)),
		weights:   make([]float64, len(a.Features)),
		means:     make([]float64, len(a.Features)),
		intercept: a.Intercept,
	}
	seen := make(map[string]bool, len(a.Features))
	for i, f := range a.Features {
		if f.Name == "" {
			return nil, fmt.Errorf("feature %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate feature %q", f.Name)
		}
		if !isFinite(f.Weight) || !isFinite(f.Mean) {
			return nil, fmt.Errorf("feature %q has non-finite parameters", f.Name)
		}
		seen[f.Name] = true
		c.names[i] = f.Name
		c.weights[i] = f.Weight
		c.means[i] = f.Mean
	}
	return c, nil
}

// Features returns the classifier's input schema in column order.
func (c *Classifier) Features() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Infer computes the fault probability and the top contributing features for
// one feature vector. The vector must match the classifier schema exactly:
// same column names in the same order, finite values. Identical input always
// yields identical output.
func (c *Classifier) Infer(features []string, values []float64) (float64, []Contribution, error) {
	if err := c.checkSchema(features, values); err != nil {
		return 0, nil, err
	}

	score := c.intercept
	contribs := make([]Contribution, len(values))
	for i, v := range values {
		score += c.weights[i] * v
		contribs[i] = Contribution{
			Feature:   c.names[i],
			ShapValue: c.weights[i] * (v - c.means[i]),
		}
	}

	// Descending by magnitude; SliceStable keeps column order on ties.
	sort.SliceStable(contribs, func(i, j int) bool {
		return math.Abs(contribs[i].ShapValue) > math.Abs(contribs[j].ShapValue)
	})
	if len(contribs) > topContributors {
		contribs = contribs[:topContributors]
	}

	return sigmoid(score), contribs, nil
}

func (c *Classifier) checkSchema(features []string, values []float64) error {
	if len(features) != len(c.names) {
		return &SchemaMismatchError{
			Reason: fmt.Sprintf("got %d columns, model expects %d", len(features), len(c.names)),
		}
	}
	if len(values) != len(features) {
		return &SchemaMismatchError{
			Reason: fmt.Sprintf("got %d values for %d columns", len(values), len(features)),
		}
	}
	for i, name := range features {
		if name != c.names[i] {
			return &SchemaMismatchError{
				Reason: fmt.Sprintf("column %d is %q, model expects %q", i, name, c.names[i]),
			}
		}
		if !isFinite(values[i]) {
			return &SchemaMismatchError{
				Reason: fmt.Sprintf("column %q has non-finite value", name),
			}
		}
	}
	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
