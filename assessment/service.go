package assessment

import (
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"obesityrisk/ml"
	"obesityrisk/monitoring"
)

// Assessment is a prediction with everything needed to present it.
type Assessment struct {
	Label           ml.Label             `json:"label"`
	Display         string               `json:"display"`
	Tier            Tier                 `json:"tier"`
	Headline        string               `json:"headline"`
	Message         string               `json:"message"`
	Recommendations []string             `json:"recommendations"`
	Confidence      float64              `json:"confidence"`
	Probabilities   map[ml.Label]float64 `json:"probabilities"`
	BMI             float64              `json:"bmi"`
	BMIBand         string               `json:"bmi_band"`
	RiskFactors     []RiskFactor         `json:"risk_factors"`
	Cached          bool                 `json:"cached"`
}

// FormattedBMI is used by the HTML template.
func (a *Assessment) FormattedBMI() string {
	return FormatBMI(a.BMI)
}

// Service wraps a predictor with memoisation, metrics and logging. Predictions
// are a pure function of the record, so a cached result is indistinguishable
// from a fresh one apart from the Cached flag.
type Service struct {
	predictor ml.Predictor
	cache     *lru.Cache[string, Assessment]
	metrics   *monitoring.PredictionMetrics
	logger    *zap.Logger
}

// NewService builds a service. cacheSize 0 disables the cache; metrics and
// logger may be nil.
func NewService(predictor ml.Predictor, cacheSize int, metrics *monitoring.PredictionMetrics, logger *zap.Logger) (*Service, error) {
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if metrics == nil {
		metrics = monitoring.NewPredictionMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{predictor: predictor, metrics: metrics, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[string, Assessment](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Metrics exposes the counters the service records into.
func (s *Service) Metrics() *monitoring.PredictionMetrics {
	return s.metrics
}

// Assess validates a JSON-style record and assesses it.
func (s *Service) Assess(raw map[string]any) (*Assessment, error) {
	start := time.Now()
	rec, err := ml.ParseRecord(raw)
	if err != nil {
		s.fail(err, start)
		return nil, err
	}
	return s.assess(rec, start)
}

// AssessForm is Assess for form input where every value is text.
func (s *Service) AssessForm(values map[string]string) (*Assessment, error) {
	start := time.Now()
	rec, err := ml.ParseStringRecord(values)
	if err != nil {
		s.fail(err, start)
		return nil, err
	}
	return s.assess(rec, start)
}

func (s *Service) assess(rec ml.PatientRecord, start time.Time) (*Assessment, error) {
	key := rec.Key()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			a := cached.clone()
			a.Cached = true
			s.metrics.RecordPrediction(string(a.Label), true, time.Since(start))
			return a, nil
		}
	}

	a, err := s.compute(rec)
	if err != nil {
		s.fail(err, start)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, *a.clone())
	}
	s.metrics.RecordPrediction(string(a.Label), false, time.Since(start))
	s.logger.Debug("assessment computed",
		zap.String("label", string(a.Label)),
		zap.Float64("confidence", a.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a, nil
}

func (s *Service) compute(rec ml.PatientRecord) (*Assessment, error) {
	label, err := s.predictor.Predict(rec)
	if err != nil {
		return nil, err
	}
	proba, err := s.predictor.PredictProba(rec)
	if err != nil {
		return nil, err
	}
	g, ok := GuidanceFor(label)
	if !ok {
		return nil, fmt.Errorf("no guidance for label %q", label)
	}
	bmi := BMI(rec)
	return &Assessment{
		Label:           label,
		Display:         label.Display(),
		Tier:            g.Tier,
		Headline:        g.Headline,
		Message:         g.Message,
		Recommendations: g.Recommendations,
		Confidence:      proba[label],
		Probabilities:   proba,
		BMI:             bmi,
		BMIBand:         BMIBand(bmi),
		RiskFactors:     RiskFactors(rec),
	}, nil
}

func (s *Service) fail(err error, start time.Time) {
	if ml.IsInputError(err) {
		s.metrics.RecordFailure(monitoring.OutcomeInvalidInput, time.Since(start))
		s.logger.Debug("assessment rejected", zap.Error(err))
		return
	}
	s.metrics.RecordFailure(monitoring.OutcomeError, time.Since(start))
	s.logger.Error("assessment failed", zap.Error(err))
}

func (a Assessment) clone() *Assessment {
	out := a
	out.Recommendations = append([]string(nil), a.Recommendations...)
	out.RiskFactors = make([]RiskFactor, len(a.RiskFactors))
	copy(out.RiskFactors, a.RiskFactors)
	out.Probabilities = make(map[ml.Label]float64, len(a.Probabilities))
	for k, v := range a.Probabilities {
		out.Probabilities[k] = v
	}
	return &out
}
