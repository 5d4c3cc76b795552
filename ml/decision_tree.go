package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// TreeConfig holds the growth limits of a single tree.
type TreeConfig struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features sampled per split, 0 means all
}

// DecisionTree is a CART classifier stored as a flat node slice; node 0 is the root.
type DecisionTree struct {
	Nodes      []TreeNode `json:"nodes"`
	NumClasses int        `json:"num_classes"`
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

type treeBuilder struct {
	features   [][]float64
	labels     []int
	numClasses int
	config     TreeConfig
	rng        *rand.Rand
	nodes      []TreeNode
}

// Train grows the tree on the rows selected by samples. Repeated indices act
// as sample weights, which is how bootstrap samples are passed in.
func (dt *DecisionTree) Train(features [][]float64, labels []int, samples []int, numClasses int, config TreeConfig, rng *rand.Rand) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if numClasses <= 0 {
		return errors.New("numClasses must be positive")
	}
	if samples == nil {
		samples = make([]int, len(features))
		for i := range samples {
			samples[i] = i
		}
	}
	if len(samples) == 0 {
		return errors.New("no samples selected")
	}
	for _, label := range labels {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("label %d out of range", label)
		}
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.MinSamplesLeaf < 1 {
		config.MinSamplesLeaf = 1
	}
	width := len(features[0])
	if config.MaxFeatures <= 0 || config.MaxFeatures > width {
		config.MaxFeatures = width
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	b := &treeBuilder{
		features:   features,
		labels:     labels,
		numClasses: numClasses,
		config:     config,
		rng:        rng,
	}
	b.build(append([]int(nil), samples...), 0)
	dt.Nodes = b.nodes
	dt.NumClasses = numClasses
	return nil
}

// PredictProba walks the tree and returns the class distribution of the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Distribution, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Predict returns the majority class of the reached leaf and its share.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	dist, err := dt.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(dist)
	return label, dist[label], nil
}

// Depth is the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

func (dt *DecisionTree) validate(width int) error {
	if len(dt.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Distribution) != dt.NumClasses {
				return fmt.Errorf("leaf %d has %d classes, expected %d", i, len(node.Distribution), dt.NumClasses)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= width {
			return fmt.Errorf("node %d splits on feature %d outside [0, %d)", i, node.FeatureIdx, width)
		}
		// children are always appended after their parent, which also rules out cycles
		if node.LeftChild <= i || node.LeftChild >= len(dt.Nodes) || node.RightChild <= i || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

func (b *treeBuilder) build(samples []int, depth int) int {
	counts := b.classCounts(samples)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1})

	stop := isPure(counts) ||
		(b.config.MaxDepth > 0 && depth >= b.config.MaxDepth) ||
		len(samples) < b.config.MinSamplesSplit ||
		len(samples) < 2*b.config.MinSamplesLeaf
	if !stop {
		feature, threshold, ok := b.findBestSplit(samples, counts)
		if ok {
			left, right := b.partition(samples, feature, threshold)
			leftIdx := b.build(left, depth+1)
			rightIdx := b.build(right, depth+1)
			b.nodes[idx] = TreeNode{
				FeatureIdx: feature,
				Threshold:  threshold,
				LeftChild:  leftIdx,
				RightChild: rightIdx,
			}
			return idx
		}
	}

	b.nodes[idx] = TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		IsLeaf:       true,
		Distribution: normalize(counts, len(samples)),
	}
	return idx
}

// findBestSplit draws candidate features in random order and keeps looking past
// MaxFeatures only while every drawn feature has been constant on this node.
func (b *treeBuilder) findBestSplit(samples []int, parentCounts []int) (int, float64, bool) {
	width := len(b.features[0])
	order := b.rng.Perm(width)

	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := weightedImpurity(parentCounts, len(samples))
	examined := 0

	sorted := make([]int, len(samples))
	leftCounts := make([]int, b.numClasses)
	rightCounts := make([]int, b.numClasses)

	for _, feature := range order {
		if examined >= b.config.MaxFeatures {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.features[sorted[i]][feature] < b.features[sorted[j]][feature]
		})
		lo := b.features[sorted[0]][feature]
		hi := b.features[sorted[len(sorted)-1]][feature]
		if lo == hi {
			continue
		}
		examined++

		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = parentCounts[c]
		}
		n := len(sorted)
		for i := 1; i < n; i++ {
			moved := b.labels[sorted[i-1]]
			leftCounts[moved]++
			rightCounts[moved]--

			prev := b.features[sorted[i-1]][feature]
			curr := b.features[sorted[i]][feature]
			if prev == curr {
				continue
			}
			if i < b.config.MinSamplesLeaf || n-i < b.config.MinSamplesLeaf {
				continue
			}
			impurity := weightedImpurity(leftCounts, i) + weightedImpurity(rightCounts, n-i)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = prev + (curr-prev)/2
				if bestThreshold >= curr {
					bestThreshold = prev
				}
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) partition(samples []int, feature int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.features[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.numClasses)
	for _, s := range samples {
		counts[b.labels[s]]++
	}
	return counts
}

// weightedImpurity is n * gini, so sums over children compare directly with the parent.
func weightedImpurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(n) * gini(counts, n)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(n)
		impurity -= prob * prob
	}
	return impurity
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []int, n int) []float64 {
	dist := make([]float64, len(counts))
	if n == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = float64(c) / float64(n)
	}
	return dist
}

// argmax picks the lowest index among equal maxima.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
