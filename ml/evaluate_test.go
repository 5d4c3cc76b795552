package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 0, 2}

	report, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)

	assert.Equal(t, 6, report.TotalSamples)
	assert.Equal(t, 4, report.Correct)
	assert.InDelta(t, 4.0/6.0, report.Accuracy, 1e-12)
	require.Len(t, report.Classes, 3)

	c0 := report.Classes[0]
	assert.Equal(t, InsufficientWeight, c0.Label)
	assert.InDelta(t, 0.5, c0.Precision, 1e-12)
	assert.InDelta(t, 0.5, c0.Recall, 1e-12)
	assert.Equal(t, 2, c0.Support)

	c1 := report.Classes[1]
	assert.InDelta(t, 2.0/3.0, c1.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, c1.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, c1.F1, 1e-12)

	c2 := report.Classes[2]
	assert.Equal(t, 1.0, c2.F1)

	assert.Equal(t, 1, report.ConfusionMatrix[0][1])
	assert.Equal(t, 1, report.ConfusionMatrix[1][0])
	assert.InDelta(t, (0.5+2.0/3.0+1.0)/3, report.MacroF1, 1e-12)
	assert.InDelta(t, (2*0.5+3*2.0/3.0+1*1.0)/6, report.WeightedF1, 1e-12)
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(nil, nil)
	assert.Error(t, err)
	_, err = Evaluate([]int{0}, []int{0, 1})
	assert.Error(t, err)
	_, err = Evaluate([]int{9}, []int{0})
	assert.Error(t, err)
}
