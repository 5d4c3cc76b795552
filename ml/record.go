package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PatientRecord is one validated observation.
type PatientRecord struct {
	Gender        string  `json:"Gender"`
	Age           int     `json:"Age"`
	Height        float64 `json:"Height"`
	Weight        float64 `json:"Weight"`
	FamilyHistory string  `json:"family_history"`
	FAVC          string  `json:"FAVC"`
	FCVC          int     `json:"FCVC"`
	NCP           int     `json:"NCP"`
	CAEC          string  `json:"CAEC"`
	CH2O          int     `json:"CH2O"`
	SCC           string  `json:"SCC"`
	FAF           int     `json:"FAF"`
	TUE           int     `json:"TUE"`
	SMOKE         string  `json:"SMOKE"`
	CALC          string  `json:"CALC"`
	MTRANS        string  `json:"MTRANS"`
}

// NumericValue returns the value of a numeric field by dictionary name.
func (r PatientRecord) NumericValue(name string) (float64, error) {
	switch name {
	case "Age":
		return float64(r.Age), nil
	case "Height":
		return r.Height, nil
	case "Weight":
		return r.Weight, nil
	case "FCVC":
		return float64(r.FCVC), nil
	case "NCP":
		return float64(r.NCP), nil
	case "CH2O":
		return float64(r.CH2O), nil
	case "FAF":
		return float64(r.FAF), nil
	case "TUE":
		return float64(r.TUE), nil
	}
	return 0, fmt.Errorf("%q is not a numeric field", name)
}

// CategoryValue returns the value of a categorical field by dictionary name.
func (r PatientRecord) CategoryValue(name string) (string, error) {
	switch name {
	case "Gender":
		return r.Gender, nil
	case "family_history":
		return r.FamilyHistory, nil
	case "FAVC":
		return r.FAVC, nil
	case "CAEC":
		return r.CAEC, nil
	case "SCC":
		return r.SCC, nil
	case "SMOKE":
		return r.SMOKE, nil
	case "CALC":
		return r.CALC, nil
	case "MTRANS":
		return r.MTRANS, nil
	}
	return "", fmt.Errorf("%q is not a categorical field", name)
}

// Key is a canonical encoding of the record, equal for equal records.
func (r PatientRecord) Key() string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('|')
		}
		if f.Numeric() {
			v, _ := r.NumericValue(f.Name)
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		} else {
			v, _ := r.CategoryValue(f.Name)
			b.WriteString(v)
		}
	}
	return b.String()
}

func (r *PatientRecord) setNumeric(name string, v float64) {
	switch name {
	case "Age":
		r.Age = int(v)
	case "Height":
		r.Height = v
	case "Weight":
		r.Weight = v
	case "FCVC":
		r.FCVC = int(v)
	case "NCP":
		r.NCP = int(v)
	case "CH2O":
		r.CH2O = int(v)
	case "FAF":
		r.FAF = int(v)
	case "TUE":
		r.TUE = int(v)
	}
}

func (r *PatientRecord) setCategory(name, v string) {
	switch name {
	case "Gender":
		r.Gender = v
	case "family_history":
		r.FamilyHistory = v
	case "FAVC":
		r.FAVC = v
	case "CAEC":
		r.CAEC = v
	case "SCC":
		r.SCC = v
	case "SMOKE":
		r.SMOKE = v
	case "CALC":
		r.CALC = v
	case "MTRANS":
		r.MTRANS = v
	}
}

// ParseRecord validates a raw field mapping and builds a PatientRecord.
// Fields are checked in dictionary order and the first problem is returned.
// Categorical values are not checked here; the fitted encoder owns that.
func ParseRecord(raw map[string]any) (PatientRecord, error) {
	var rec PatientRecord
	for _, f := range fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			return PatientRecord{}, &MissingFieldError{Field: f.Name}
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return PatientRecord{}, &MissingFieldError{Field: f.Name}
		}

		if !f.Numeric() {
			s, isString := v.(string)
			if !isString {
				return PatientRecord{}, &InvalidValueError{Field: f.Name, Value: v, Reason: "expected a string"}
			}
			rec.setCategory(f.Name, strings.TrimSpace(s))
			continue
		}

		n, err := toFloat(v)
		if err != nil {
			return PatientRecord{}, &InvalidValueError{Field: f.Name, Value: v, Reason: err.Error()}
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return PatientRecord{}, &InvalidValueError{Field: f.Name, Value: v, Reason: "expected an integer"}
		}
		if err := f.checkRange(n); err != nil {
			return PatientRecord{}, err
		}
		rec.setNumeric(f.Name, n)
	}
	return rec, nil
}

// Validate checks a typed record against the data dictionary: numeric fields
// must be finite and inside their range, categorical fields must be set.
// Membership of a categorical value is left to the fitted encoder.
func (r PatientRecord) Validate() error {
	for _, f := range fields {
		if !f.Numeric() {
			v, _ := r.CategoryValue(f.Name)
			if strings.TrimSpace(v) == "" {
				return &MissingFieldError{Field: f.Name}
			}
			continue
		}
		v, _ := r.NumericValue(f.Name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidValueError{Field: f.Name, Value: v, Reason: "not a finite number"}
		}
		if err := f.checkRange(v); err != nil {
			return err
		}
	}
	return nil
}

// ParseStringRecord is ParseRecord for form-style input where every value is text.
func ParseStringRecord(values map[string]string) (PatientRecord, error) {
	raw := make(map[string]any, len(values))
	for k, v := range values {
		raw[k] = v
	}
	return ParseRecord(raw)
}

// Raw converts the record back into the mapping accepted by ParseRecord.
func (r PatientRecord) Raw() map[string]any {
	raw := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.Numeric() {
			v, _ := r.NumericValue(f.Name)
			raw[f.Name] = v
		} else {
			v, _ := r.CategoryValue(f.Name)
			raw[f.Name] = v
		}
	}
	return raw
}

func toFloat(v any) (float64, error) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case int32:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		n = f
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return n, nil
}
