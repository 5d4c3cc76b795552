package ml

import (
	"errors"
	"fmt"
)

// ClassMetrics is one row of the classification report.
type ClassMetrics struct {
	Label     Label   `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// EvaluationReport summarises predictions on the held-out partition.
type EvaluationReport struct {
	Accuracy          float64        `json:"accuracy"`
	Classes           []ClassMetrics `json:"classes"`
	MacroPrecision    float64        `json:"macro_precision"`
	MacroRecall       float64        `json:"macro_recall"`
	MacroF1           float64        `json:"macro_f1"`
	WeightedPrecision float64        `json:"weighted_precision"`
	WeightedRecall    float64        `json:"weighted_recall"`
	WeightedF1        float64        `json:"weighted_f1"`
	ConfusionMatrix   [][]int        `json:"confusion_matrix"` // actual -> predicted
	TotalSamples      int            `json:"total_samples"`
	Correct           int            `json:"correct"`
}

// Evaluate builds the report from label indices. Classes without support and
// without predictions are left out of the per-class rows and the averages.
func Evaluate(yTrue, yPred []int) (*EvaluationReport, error) {
	if len(yTrue) == 0 {
		return nil, errors.New("empty test data")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.New("yTrue and yPred must have same length")
	}

	k := len(labels)
	report := &EvaluationReport{
		ConfusionMatrix: make([][]int, k),
		TotalSamples:    len(yTrue),
	}
	for i := range report.ConfusionMatrix {
		report.ConfusionMatrix[i] = make([]int, k)
	}
	for i := range yTrue {
		actual, predicted := yTrue[i], yPred[i]
		if actual < 0 || actual >= k || predicted < 0 || predicted >= k {
			return nil, fmt.Errorf("label index out of range at row %d", i)
		}
		report.ConfusionMatrix[actual][predicted]++
		if actual == predicted {
			report.Correct++
		}
	}
	report.Accuracy = float64(report.Correct) / float64(report.TotalSamples)

	var present int
	for c := 0; c < k; c++ {
		tp := report.ConfusionMatrix[c][c]
		support, predicted := 0, 0
		for j := 0; j < k; j++ {
			support += report.ConfusionMatrix[c][j]
			predicted += report.ConfusionMatrix[j][c]
		}
		if support == 0 && predicted == 0 {
			continue
		}
		m := ClassMetrics{Label: labels[c], Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes = append(report.Classes, m)

		present++
		report.MacroPrecision += m.Precision
		report.MacroRecall += m.Recall
		report.MacroF1 += m.F1
		w := float64(support) / float64(report.TotalSamples)
		report.WeightedPrecision += w * m.Precision
		report.WeightedRecall += w * m.Recall
		report.WeightedF1 += w * m.F1
	}
	if present > 0 {
		report.MacroPrecision /= float64(present)
		report.MacroRecall /= float64(present)
		report.MacroF1 /= float64(present)
	}
	return report, nil
}
