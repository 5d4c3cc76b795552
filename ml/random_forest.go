package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ForestConfig holds the random forest hyperparameters. They are fixed for a
// training run and recorded in the artifact.
type ForestConfig struct {
	NumTrees        int    `json:"num_trees" yaml:"num_trees"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     string `json:"max_features" yaml:"max_features"` // "sqrt", "log2", "all" or a count
	Bootstrap       bool   `json:"bootstrap" yaml:"bootstrap"`
	Seed            int64  `json:"seed" yaml:"seed"`
	Workers         int    `json:"-" yaml:"workers"`
}

// DefaultForestConfig mirrors the usual library defaults: 100 fully grown gini trees.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		Seed:            42,
	}
}

// ResolveMaxFeatures turns the MaxFeatures setting into a feature count for width columns.
func (c ForestConfig) ResolveMaxFeatures(width int) (int, error) {
	if width <= 0 {
		return 0, errors.New("width must be positive")
	}
	var n int
	switch c.MaxFeatures {
	case "", "sqrt":
		n = int(math.Sqrt(float64(width)))
	case "log2":
		n = int(math.Log2(float64(width)))
	case "all":
		n = width
	default:
		v, err := strconv.Atoi(c.MaxFeatures)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid max_features %q", c.MaxFeatures)
		}
		n = v
	}
	return min(max(n, 1), width), nil
}

// RandomForest averages the leaf distributions of its trees.
type RandomForest struct {
	Trees       []*DecisionTree `json:"trees"`
	NumFeatures int             `json:"num_features"`
	NumClasses  int             `json:"num_classes"`
	Config      ForestConfig    `json:"config"`
}

// TrainRandomForest fits the forest. Every tree draws its seed from the master
// RNG before any fitting starts, so the result does not depend on scheduling.
func TrainRandomForest(ctx context.Context, features [][]float64, labels []int, numClasses int, config ForestConfig) (*RandomForest, error) {
	if len(features) == 0 {
		return nil, errors.New("empty training data")
	}
	if len(features) != len(labels) {
		return nil, errors.New("features and labels size mismatch")
	}
	if config.NumTrees <= 0 {
		return nil, errors.New("num_trees must be positive")
	}
	width := len(features[0])
	maxFeatures, err := config.ResolveMaxFeatures(width)
	if err != nil {
		return nil, err
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	master := rand.New(rand.NewSource(config.Seed))
	seeds := make([]int64, config.NumTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	treeConfig := TreeConfig{
		MaxDepth:        config.MaxDepth,
		MinSamplesSplit: config.MinSamplesSplit,
		MinSamplesLeaf:  config.MinSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}

	rf := &RandomForest{
		Trees:       make([]*DecisionTree, config.NumTrees),
		NumFeatures: width,
		NumClasses:  numClasses,
		Config:      config,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rf.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			var samples []int
			if config.Bootstrap {
				samples = bootstrapSample(len(features), rng)
			}
			tree := &DecisionTree{}
			if err := tree.Train(features, labels, samples, numClasses, treeConfig, rng); err != nil {
				return fmt.Errorf("tree %d training failed: %w", i, err)
			}
			rf.Trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rf, nil
}

func bootstrapSample(n int, rng *rand.Rand) []int {
	samples := make([]int, n)
	for i := range samples {
		samples[i] = rng.Intn(n)
	}
	return samples
}

// PredictProba averages the class distributions of all trees.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != rf.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, len(features))
	}
	proba := make([]float64, rf.NumClasses)
	for i, tree := range rf.Trees {
		dist, err := tree.PredictProba(features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, p := range dist {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(rf.Trees))
	}
	return proba, nil
}

// Predict returns the class with the highest averaged probability and that probability.
func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(proba)
	return label, proba[label], nil
}

func (rf *RandomForest) validate() error {
	if len(rf.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	if rf.NumFeatures <= 0 {
		return errors.New("forest has no features")
	}
	for i, tree := range rf.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if tree.NumClasses != rf.NumClasses {
			return fmt.Errorf("tree %d has %d classes, expected %d", i, tree.NumClasses, rf.NumClasses)
		}
		if err := tree.validate(rf.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
