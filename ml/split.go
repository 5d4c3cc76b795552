package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// DefaultTestRatio is the held-out share of every class.
const DefaultTestRatio = 0.3

// StratifiedSplit partitions row indices into train and test sets so that each
// class keeps its relative frequency in both. The same seed gives the same split.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int, err error) {
	if len(labels) == 0 {
		return nil, nil, errors.New("labels is empty")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.New("test ratio must be in (0, 1)")
	}

	byClass := make(map[int][]int)
	classes := make([]int, 0)
	for i, label := range labels {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Ints(classes)

	rnd := rand.New(rand.NewSource(seed))
	for _, class := range classes {
		indices := byClass[class]
		rnd.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := int(math.Round(float64(len(indices)) * testRatio))
		if nTest >= len(indices) {
			nTest = len(indices) - 1
		}
		test = append(test, indices[:nTest]...)
		train = append(train, indices[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	if len(test) == 0 {
		return nil, nil, errors.New("test partition is empty")
	}
	return train, test, nil
}
