package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// ErrUnknownAggregation is returned for an unrecognized aggregation name.
var ErrUnknownAggregation = errors.New("unknown aggregation strategy")

// Aggregation strategy names accepted by NewAggregator.
const (
	AggregationConsensus = "consensus"
	AggregationWeighted  = "weighted"
	AggregationMax       = "max"
)

// Aggregator combines the confidence of successful agent results into one
// score in [0,1]. Callers pass only SUCCESS results, at least one.
type Aggregator interface {
	Name() string
	Aggregate(results []models.AgentResult) float64
}

// MeanAggregator is the simple average of agent confidences.
type MeanAggregator struct{}

// Name returns "consensus".
func (MeanAggregator) Name() string { return AggregationConsensus }

// Aggregate returns the arithmetic mean.
func (MeanAggregator) Aggregate(results []models.AgentResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.ConfidenceValue()
	}
	return clamp01(sum / float64(len(results)))
}

// WeightedAggregator averages confidences weighted by agent role.
// Roles without a weight count as 1.
type WeightedAggregator struct {
	Weights map[models.AgentRole]float64
}

// Name returns "weighted".
func (WeightedAggregator) Name() string { return AggregationWeighted }

// Aggregate returns the weighted mean. With all weights zero it falls back to the plain mean.
func (w WeightedAggregator) Aggregate(results []models.AgentResult) float64 {
	var sum, total float64
	for _, r := range results {
		weight, ok := w.Weights[r.Role]
		if !ok {
			weight = 1
		}
		sum += weight * r.ConfidenceValue()
		total += weight
	}
	if total <= 0 {
		return MeanAggregator{}.Aggregate(results)
	}
	return clamp01(sum / total)
}

// MaxAggregator takes the highest single confidence.
type MaxAggregator struct{}

// Name returns "max".
func (MaxAggregator) Name() string { return AggregationMax }

// Aggregate returns the maximum confidence.
func (MaxAggregator) Aggregate(results []models.AgentResult) float64 {
	var best float64
	for _, r := range results {
		if c := r.ConfidenceValue(); c > best {
			best = c
		}
	}
	return clamp01(best)
}

// NewAggregator builds the strategy named by name. roleWeights is keyed by
// role label and only used by the weighted strategy. An empty name selects consensus.
func NewAggregator(name string, roleWeights map[string]float64) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AggregationConsensus, "mean":
		return MeanAggregator{}, nil
	case AggregationMax:
		return MaxAggregator{}, nil
	case AggregationWeighted:
		weights := make(map[models.AgentRole]float64, len(roleWeights))
		for label, weight := range roleWeights {
			role, err := models.ParseAgentRole(label)
			if err != nil {
				return nil, fmt.Errorf("role weight %q: %w", label, err)
			}
			if weight < 0 {
				return nil, fmt.Errorf("role weight %q: negative weight %v", label, weight)
			}
			weights[role] = weight
		}
		return WeightedAggregator{Weights: weights}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownAggregation, name, strings.Join(AggregationNames(), ", "))
	}
}

// AggregationNames lists the accepted strategy names.
func AggregationNames() []string {
	names := []string{AggregationConsensus, AggregationWeighted, AggregationMax}
	sort.Strings(names)
	return names
}

// DedupRecommendations concatenates recommendations in result order and
// removes exact duplicates, keeping the first occurrence.
func DedupRecommendations(results []models.AgentResult) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, r := range results {
		for _, rec := range r.Recommendations {
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
