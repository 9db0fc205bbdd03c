package orchestrator

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func successes(confidences ...float64) []models.AgentResult {
	out := make([]models.AgentResult, len(confidences))
	for i, c := range confidences {
		out[i] = resultWith(i, models.AgentStatusSuccess, c)
	}
	return out
}

func TestMeanAggregator(t *testing.T) {
	tests := []struct {
		name string
		in   []models.AgentResult
		want float64
	}{
		{"four agents", successes(0.8, 0.6, 0.9, 0.7), 0.75},
		{"two agents", successes(0.8, 0.6), 0.7},
		{"single", successes(0.3), 0.3},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (MeanAggregator{}).Aggregate(tt.in); !approx(got, tt.want) {
				t.Errorf("Aggregate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedAggregator(t *testing.T) {
	in := successes(0.8, 0.4)

	tests := []struct {
		name    string
		weights map[models.AgentRole]float64
		want    float64
	}{
		{"no weights is mean", nil, 0.6},
		{"syntax counts triple", map[models.AgentRole]float64{models.RoleSyntax: 3}, 0.7},
		{"data logic only", map[models.AgentRole]float64{models.RoleSyntax: 0}, 0.4},
		{"all zero falls back to mean", map[models.AgentRole]float64{models.RoleSyntax: 0, models.RoleDataLogic: 0}, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAggregator{Weights: tt.weights}.Aggregate(in)
			if !approx(got, tt.want) {
				t.Errorf("Aggregate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxAggregator(t *testing.T) {
	if got := (MaxAggregator{}).Aggregate(successes(0.2, 0.9, 0.5)); !approx(got, 0.9) {
		t.Errorf("Aggregate = %v, want 0.9", got)
	}
}

func TestNewAggregator(t *testing.T) {
	tests := []struct {
		name     string
		weights  map[string]float64
		wantName string
		wantErr  bool
	}{
		{"", nil, AggregationConsensus, false},
		{"consensus", nil, AggregationConsensus, false},
		{"Mean", nil, AggregationConsensus, false},
		{"max", nil, AggregationMax, false},
		{"weighted", map[string]float64{"syntax": 2, "verification": 0.5}, AggregationWeighted, false},
		{"weighted", map[string]float64{"nonsense": 1}, "", true},
		{"weighted", map[string]float64{"syntax": -1}, "", true},
		{"median", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.wantName, func(t *testing.T) {
			agg, err := NewAggregator(tt.name, tt.weights)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if agg.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", agg.Name(), tt.wantName)
			}
		})
	}

	if _, err := NewAggregator("median", nil); !errors.Is(err, ErrUnknownAggregation) {
		t.Errorf("expected ErrUnknownAggregation, got %v", err)
	}
}

func TestNewAggregator_WeightsByRole(t *testing.T) {
	agg, err := NewAggregator("weighted", map[string]float64{"data_logic": 2})
	if err != nil {
		t.Fatal(err)
	}
	w := agg.(WeightedAggregator)
	if w.Weights[models.RoleDataLogic] != 2 {
		t.Errorf("data_logic weight = %v, want 2", w.Weights[models.RoleDataLogic])
	}
}

func TestDedupRecommendations(t *testing.T) {
	tests := []struct {
		name string
		in   []models.AgentResult
		want []string
	}{
		{
			name: "first occurrence kept",
			in: []models.AgentResult{
				resultWith(0, models.AgentStatusSuccess, 1, "A", "B"),
				resultWith(1, models.AgentStatusSuccess, 1, "B", "C"),
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "exact match only",
			in: []models.AgentResult{
				resultWith(0, models.AgentStatusSuccess, 1, "Add year", "add year"),
			},
			want: []string{"Add year", "add year"},
		},
		{
			name: "none",
			in:   []models.AgentResult{resultWith(0, models.AgentStatusSuccess, 1)},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupRecommendations(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupRecommendations = %#v, want %#v", got, tt.want)
			}
		})
	}
}
