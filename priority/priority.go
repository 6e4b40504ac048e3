package priority

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-yaml"
)

// Placeholder is the priority an issue carries until it is scored.
const Placeholder = 2

// Weights holds the three lookup tables used by the Scorer.
type Weights struct {
	Risk  map[string]int `yaml:"risk"`
	Infra map[string]int `yaml:"infra"`
	Zone  map[string]int `yaml:"zone"`
}

// DefaultWeights returns the production weight tables.
func DefaultWeights() Weights {
	return Weights{
		Risk: map[string]int{
			"Safe":     10,
			"Warning":  40,
			"Critical": 80,
		},
		Infra: map[string]int{
			"bridge":       40,
			"road":         30,
			"water":        25,
			"street_light": 15,
		},
		Zone: map[string]int{
			"school_zone":   30,
			"hospital_zone": 30,
			"main_road":     20,
			"residential":   10,
			"industrial":    10,
			"low_traffic":   5,
		},
	}
}

// LoadWeights reads weight tables from a YAML file.
func LoadWeights(path string) (Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights %s: %w", path, err)
	}
	return w, nil
}

// Scorer turns a risk assessment into an urgency score in [0, 100].
// It is immutable after construction and safe for concurrent use.
type Scorer struct {
	risk, infra, zone map[string]int
	max               int
}

func NewScorer(w Weights) (*Scorer, error) {
	s := &Scorer{
		risk:  copyTable(w.Risk),
		infra: copyTable(w.Infra),
		zone:  copyTable(w.Zone),
	}
	for name, table := range map[string]map[string]int{"risk": s.risk, "infra": s.infra, "zone": s.zone} {
		for k, v := range table {
			if v < 0 {
				return nil, fmt.Errorf("%s weight %q is negative", name, k)
			}
		}
	}
	s.max = maxOf(s.risk) + maxOf(s.infra) + maxOf(s.zone)
	if s.max == 0 {
		return nil, errors.New("weight tables are empty")
	}
	return s, nil
}

// MaxTotal is the largest possible weight sum.
func (s *Scorer) MaxTotal() int { return s.max }

// Score combines the three signals. Unknown keys contribute nothing.
func (s *Scorer) Score(riskLevel, infraType, zone string) int {
	sum := s.risk[riskLevel] + s.infra[infraType] + s.zone[zone]
	score := int(math.Round(float64(sum) / float64(s.max) * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func copyTable(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func maxOf(table map[string]int) int {
	m := 0
	for _, v := range table {
		if v > m {
			m = v
		}
	}
	return m
}
