package ml

// Predictor is what the serving layer needs from a loaded pipeline.
type Predictor interface {
	Predict(rec PatientRecord) (Label, error)
	PredictProba(rec PatientRecord) (map[Label]float64, error)
}

// ModelInfo exposes artifact metadata without giving access to predictions.
type ModelInfo interface {
	Info() TrainingInfo
	FeatureNames() []string
	NumTrees() int
	Levels(field string) []string
}

var (
	_ Predictor = (*TrainedPipeline)(nil)
	_ ModelInfo = (*TrainedPipeline)(nil)
)
