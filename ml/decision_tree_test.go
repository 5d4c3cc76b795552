package ml

import (
	"math/rand"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := &DecisionTree{}
	if err := model.Train(features, labels, nil, 3, TreeConfig{}, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected a pure leaf, got confidence %f", confidence)
	}
	label, _, err = model.Predict([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 {
		t.Fatalf("expected label 2, got %d", label)
	}
}

func TestDecisionTreeRespectsMaxDepth(t *testing.T) {
	features := make([][]float64, 0, 64)
	labels := make([]int, 0, 64)
	for i := 0; i < 64; i++ {
		features = append(features, []float64{float64(i)})
		labels = append(labels, i%4)
	}

	model := &DecisionTree{}
	if err := model.Train(features, labels, nil, 4, TreeConfig{MaxDepth: 3}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if depth := model.Depth(); depth > 3 {
		t.Fatalf("expected depth <= 3, got %d", depth)
	}
	if err := model.validate(1); err != nil {
		t.Fatalf("tree failed validation: %v", err)
	}
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	labels := []int{0, 1, 1, 1, 1, 1}

	model := &DecisionTree{}
	if err := model.Train(features, labels, nil, 2, TreeConfig{MinSamplesLeaf: 2}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, node := range model.Nodes {
		if !node.IsLeaf {
			continue
		}
		// a lone sample of class 0 cannot be isolated into its own leaf
		if node.Distribution[0] == 1 {
			t.Fatalf("leaf %d isolates a single sample", i)
		}
	}
}

func TestDecisionTreeBootstrapWeights(t *testing.T) {
	features := [][]float64{{0}, {1}}
	labels := []int{0, 1}

	model := &DecisionTree{}
	// row 1 is drawn three times, row 0 never
	if err := model.Train(features, labels, []int{1, 1, 1}, 2, TreeConfig{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.Nodes) != 1 || !model.Nodes[0].IsLeaf {
		t.Fatalf("expected a single leaf, got %d nodes", len(model.Nodes))
	}
	label, _, _ := model.Predict([]float64{0})
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := &DecisionTree{}
	if _, _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained tree")
	}
	if err := model.Train(nil, nil, nil, 2, TreeConfig{}, nil); err == nil {
		t.Fatal("expected error for empty data")
	}
	if err := model.Train([][]float64{{1}}, []int{5}, nil, 2, TreeConfig{}, nil); err == nil {
		t.Fatal("expected error for out of range label")
	}
}
