package ml

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TrainingInfo records how an artifact was produced.
type TrainingInfo struct {
	TrainedAt time.Time    `json:"trained_at"`
	TrainSize int          `json:"train_size"`
	TestSize  int          `json:"test_size"`
	Skipped   int          `json:"skipped_test_rows"`
	TestRatio float64      `json:"test_ratio"`
	Accuracy  float64      `json:"accuracy"`
	Forest    ForestConfig `json:"forest"`
}

// TrainedPipeline composes the fitted preprocessor with the forest. It is never
// mutated after construction, so one value can serve any number of goroutines.
type TrainedPipeline struct {
	preprocessor *Preprocessor
	forest       *RandomForest
	info         TrainingInfo
}

// TrainingConfig controls a training run.
type TrainingConfig struct {
	TestRatio float64
	Forest    ForestConfig
}

// TrainingResult is the pipeline plus the diagnostic report on the test partition.
type TrainingResult struct {
	Pipeline *TrainedPipeline
	Report   *EvaluationReport
}

// Train splits the samples, fits the preprocessor and forest on the training
// part and evaluates on the rest. Test rows carrying a category level absent
// from the training part cannot be encoded and are counted in Info().Skipped.
func Train(ctx context.Context, records []PatientRecord, targets []Label, config TrainingConfig) (*TrainingResult, error) {
	if len(records) == 0 {
		return nil, errors.New("no training records")
	}
	if len(records) != len(targets) {
		return nil, errors.New("records and labels size mismatch")
	}
	if config.TestRatio == 0 {
		config.TestRatio = DefaultTestRatio
	}

	y := make([]int, len(targets))
	for i, l := range targets {
		idx := l.Index()
		if idx < 0 {
			return nil, fmt.Errorf("row %d: unknown label %q", i, l)
		}
		y[i] = idx
	}

	trainIdx, testIdx, err := StratifiedSplit(y, config.TestRatio, config.Forest.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	trainRecords := make([]PatientRecord, len(trainIdx))
	trainY := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainRecords[i] = records[idx]
		trainY[i] = y[idx]
	}

	preprocessor, err := FitPreprocessor(trainRecords)
	if err != nil {
		return nil, fmt.Errorf("fit preprocessor: %w", err)
	}
	trainX, err := preprocessor.TransformAll(trainRecords)
	if err != nil {
		return nil, fmt.Errorf("transform training data: %w", err)
	}

	forest, err := TrainRandomForest(ctx, trainX, trainY, len(labels), config.Forest)
	if err != nil {
		return nil, fmt.Errorf("train forest: %w", err)
	}

	p := &TrainedPipeline{preprocessor: preprocessor, forest: forest}

	yTrue := make([]int, 0, len(testIdx))
	yPred := make([]int, 0, len(testIdx))
	skipped := 0
	for _, idx := range testIdx {
		x, err := preprocessor.Transform(records[idx])
		if err != nil {
			var unknown *UnknownCategoryError
			if errors.As(err, &unknown) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("transform test row %d: %w", idx, err)
		}
		pred, _, err := forest.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict test row %d: %w", idx, err)
		}
		yTrue = append(yTrue, y[idx])
		yPred = append(yPred, pred)
	}
	report, err := Evaluate(yTrue, yPred)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	p.info = TrainingInfo{
		TrainedAt: time.Now().UTC(),
		TrainSize: len(trainIdx),
		TestSize:  len(yTrue),
		Skipped:   skipped,
		TestRatio: config.TestRatio,
		Accuracy:  report.Accuracy,
		Forest:    config.Forest,
	}
	return &TrainingResult{Pipeline: p, Report: report}, nil
}

// Predict validates and classifies a typed record. Use PredictRaw for an
// untyped field mapping.
func (p *TrainedPipeline) Predict(rec PatientRecord) (Label, error) {
	x, err := p.preprocessor.Transform(rec)
	if err != nil {
		return "", err
	}
	idx, _, err := p.forest.Predict(x)
	if err != nil {
		return "", err
	}
	return LabelAt(idx)
}

// PredictProba returns the forest's averaged probability for every label.
func (p *TrainedPipeline) PredictProba(rec PatientRecord) (map[Label]float64, error) {
	x, err := p.preprocessor.Transform(rec)
	if err != nil {
		return nil, err
	}
	proba, err := p.forest.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make(map[Label]float64, len(proba))
	for i, v := range proba {
		out[labels[i]] = v
	}
	return out, nil
}

// PredictRaw runs validate, transform and predict on a raw field mapping.
func (p *TrainedPipeline) PredictRaw(raw map[string]any) (Label, error) {
	rec, err := ParseRecord(raw)
	if err != nil {
		return "", err
	}
	return p.Predict(rec)
}

// Info describes the training run that produced the pipeline.
func (p *TrainedPipeline) Info() TrainingInfo {
	return p.info
}

// FeatureNames labels the transformed feature vector.
func (p *TrainedPipeline) FeatureNames() []string {
	return p.preprocessor.FeatureNames()
}

// Levels returns the fitted category levels of a categorical field.
func (p *TrainedPipeline) Levels(field string) []string {
	for _, enc := range p.preprocessor.Categorical {
		if enc.Field == field {
			return append([]string(nil), enc.Levels...)
		}
	}
	return nil
}

// NumTrees is the size of the ensemble.
func (p *TrainedPipeline) NumTrees() int {
	return len(p.forest.Trees)
}
