package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ScalerParams standardizes one numeric column as (x - Mean) / Scale.
type ScalerParams struct {
	Field string  `json:"field"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// EncoderParams one-hot encodes one categorical column. Levels are sorted and
// the first level is dropped, so the column contributes len(Levels)-1 features.
type EncoderParams struct {
	Field  string   `json:"field"`
	Levels []string `json:"levels"`
}

// Preprocessor turns a PatientRecord into the forest's feature vector.
// It is fitted once on the training split and never changes afterwards.
type Preprocessor struct {
	Numeric     []ScalerParams  `json:"numeric"`
	Categorical []EncoderParams `json:"categorical"`
}

// FitPreprocessor learns scaling statistics and category levels from records.
func FitPreprocessor(records []PatientRecord) (*Preprocessor, error) {
	if len(records) == 0 {
		return nil, errors.New("records is empty")
	}

	p := &Preprocessor{}
	for _, name := range NumericFieldNames() {
		values := make([]float64, len(records))
		for i, rec := range records {
			v, err := rec.NumericValue(name)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		if std == 0 {
			std = 1
		}
		p.Numeric = append(p.Numeric, ScalerParams{Field: name, Mean: mean, Scale: std})
	}

	for _, name := range CategoricalFieldNames() {
		seen := make(map[string]struct{})
		for _, rec := range records {
			v, err := rec.CategoryValue(name)
			if err != nil {
				return nil, err
			}
			seen[v] = struct{}{}
		}
		levels := make([]string, 0, len(seen))
		for level := range seen {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		p.Categorical = append(p.Categorical, EncoderParams{Field: name, Levels: levels})
	}
	return p, nil
}

// Width is the length of every vector Transform produces.
func (p *Preprocessor) Width() int {
	width := len(p.Numeric)
	for _, enc := range p.Categorical {
		if len(enc.Levels) > 0 {
			width += len(enc.Levels) - 1
		}
	}
	return width
}

// FeatureNames labels each position of the transformed vector.
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.Width())
	for _, sc := range p.Numeric {
		names = append(names, sc.Field)
	}
	for _, enc := range p.Categorical {
		for _, level := range enc.Levels[min(1, len(enc.Levels)):] {
			names = append(names, enc.Field+"_"+level)
		}
	}
	return names
}

// Transform validates rec and produces the standardized numerics followed by
// the one-hot categoricals.
func (p *Preprocessor) Transform(rec PatientRecord) ([]float64, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	vector := make([]float64, 0, p.Width())
	for _, sc := range p.Numeric {
		v, err := rec.NumericValue(sc.Field)
		if err != nil {
			return nil, err
		}
		vector = append(vector, (v-sc.Mean)/sc.Scale)
	}
	for _, enc := range p.Categorical {
		v, err := rec.CategoryValue(enc.Field)
		if err != nil {
			return nil, err
		}
		pos := sort.SearchStrings(enc.Levels, v)
		if pos >= len(enc.Levels) || enc.Levels[pos] != v {
			return nil, &UnknownCategoryError{Field: enc.Field, Value: v, Allowed: append([]string(nil), enc.Levels...)}
		}
		for i := 1; i < len(enc.Levels); i++ {
			if i == pos {
				vector = append(vector, 1)
			} else {
				vector = append(vector, 0)
			}
		}
	}
	return vector, nil
}

// TransformAll applies Transform to every record, failing on the first error.
func (p *Preprocessor) TransformAll(records []PatientRecord) ([][]float64, error) {
	vectors := make([][]float64, len(records))
	for i, rec := range records {
		v, err := p.Transform(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (p *Preprocessor) validate() error {
	if len(p.Numeric) != len(NumericFieldNames()) {
		return fmt.Errorf("expected %d numeric columns, got %d", len(NumericFieldNames()), len(p.Numeric))
	}
	for i, name := range NumericFieldNames() {
		sc := p.Numeric[i]
		if sc.Field != name {
			return fmt.Errorf("numeric column %d is %q, expected %q", i, sc.Field, name)
		}
		if sc.Scale == 0 {
			return fmt.Errorf("numeric column %q has zero scale", name)
		}
	}
	if len(p.Categorical) != len(CategoricalFieldNames()) {
		return fmt.Errorf("expected %d categorical columns, got %d", len(CategoricalFieldNames()), len(p.Categorical))
	}
	for i, name := range CategoricalFieldNames() {
		enc := p.Categorical[i]
		if enc.Field != name {
			return fmt.Errorf("categorical column %d is %q, expected %q", i, enc.Field, name)
		}
		if len(enc.Levels) == 0 {
			return fmt.Errorf("categorical column %q has no levels", name)
		}
		if !sort.StringsAreSorted(enc.Levels) {
			return fmt.Errorf("categorical column %q levels are not sorted", name)
		}
	}
	return nil
}
