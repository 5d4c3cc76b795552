package ml

import (
	"fmt"
	"strings"
)

// FieldKind describes how a raw field value is parsed and encoded.
type FieldKind string

const (
	KindCategorical FieldKind = "categorical"
	KindInteger     FieldKind = "integer"
	KindFloat       FieldKind = "float"
)

// FieldSpec is one entry of the patient data dictionary.
type FieldSpec struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Description string    `json:"description"`
	Unit        string    `json:"unit,omitempty"`
	Min         float64   `json:"min,omitempty"`
	Max         float64   `json:"max,omitempty"`
	Levels      []string  `json:"levels,omitempty"`
}

// Numeric reports whether the field is standardized rather than one-hot encoded.
func (f FieldSpec) Numeric() bool {
	return f.Kind == KindInteger || f.Kind == KindFloat
}

func (f FieldSpec) checkRange(v float64) error {
	if v < f.Min || v > f.Max {
		return &RangeError{Field: f.Name, Value: v, Min: f.Min, Max: f.Max}
	}
	return nil
}

var yesNo = []string{"yes", "no"}
var frequency = []string{"no", "Sometimes", "Frequently", "Always"}

var fields = []FieldSpec{
	{Name: "Gender", Kind: KindCategorical, Description: "Biological sex", Levels: []string{"Female", "Male"}},
	{Name: "Age", Kind: KindInteger, Description: "Age in years", Unit: "years", Min: 1, Max: 120},
	{Name: "Height", Kind: KindFloat, Description: "Height", Unit: "m", Min: 1.0, Max: 2.5},
	{Name: "Weight", Kind: KindFloat, Description: "Weight", Unit: "kg", Min: 10.0, Max: 300.0},
	{Name: "family_history", Kind: KindCategorical, Description: "Family history of overweight", Levels: yesNo},
	{Name: "FAVC", Kind: KindCategorical, Description: "Frequent consumption of high-calorie food", Levels: yesNo},
	{Name: "FCVC", Kind: KindInteger, Description: "Frequency of vegetable consumption (1 = never, 3 = always)", Min: 1, Max: 3},
	{Name: "NCP", Kind: KindInteger, Description: "Number of main meals per day", Min: 1, Max: 4},
	{Name: "CAEC", Kind: KindCategorical, Description: "Consumption of food between meals", Levels: frequency},
	{Name: "CH2O", Kind: KindInteger, Description: "Daily water consumption (1 = under 1 L, 3 = over 2 L)", Min: 1, Max: 3},
	{Name: "SCC", Kind: KindCategorical, Description: "Monitors daily calorie intake", Levels: yesNo},
	{Name: "FAF", Kind: KindInteger, Description: "Physical activity frequency (0 = none, 3 = 4 or more days a week)", Min: 0, Max: 3},
	{Name: "TUE", Kind: KindInteger, Description: "Time using electronic devices (0 = up to 2 h, 2 = over 5 h)", Min: 0, Max: 2},
	{Name: "SMOKE", Kind: KindCategorical, Description: "Smoker", Levels: yesNo},
	{Name: "CALC", Kind: KindCategorical, Description: "Alcohol consumption", Levels: frequency},
	{Name: "MTRANS", Kind: KindCategorical, Description: "Main mode of transport", Levels: []string{"Public_Transportation", "Automobile", "Motorbike", "Bike", "Walking"}},
}

// LabelColumn is the target column of the training dataset.
const LabelColumn = "Obesity"

// Fields returns the data dictionary in declared column order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fields))
	copy(out, fields)
	return out
}

// NumericFieldNames returns the standardized columns in declared order.
func NumericFieldNames() []string {
	names := make([]string, 0, 8)
	for _, f := range fields {
		if f.Numeric() {
			names = append(names, f.Name)
		}
	}
	return names
}

// CategoricalFieldNames returns the one-hot encoded columns in declared order.
func CategoricalFieldNames() []string {
	names := make([]string, 0, 8)
	for _, f := range fields {
		if !f.Numeric() {
			names = append(names, f.Name)
		}
	}
	return names
}

// SchemaField is the part of a FieldSpec an artifact depends on.
type SchemaField struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// CurrentSchema is the field layout artifacts are checked against on load.
func CurrentSchema() []SchemaField {
	schema := make([]SchemaField, len(fields))
	for i, f := range fields {
		schema[i] = SchemaField{Name: f.Name, Kind: f.Kind}
	}
	return schema
}

func sameSchema(a, b []SchemaField) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Label is one of the seven ordered obesity-risk categories.
type Label string

const (
	InsufficientWeight Label = "Insufficient_Weight"
	NormalWeight       Label = "Normal_Weight"
	OverweightLevelI   Label = "Overweight_Level_I"
	OverweightLevelII  Label = "Overweight_Level_II"
	ObesityTypeI       Label = "Obesity_Type_I"
	ObesityTypeII      Label = "Obesity_Type_II"
	ObesityTypeIII     Label = "Obesity_Type_III"
)

var labels = []Label{
	InsufficientWeight,
	NormalWeight,
	OverweightLevelI,
	OverweightLevelII,
	ObesityTypeI,
	ObesityTypeII,
	ObesityTypeIII,
}

// Labels returns the closed label set in ordinal order.
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels)
	return out
}

// Index is the ordinal position of the label, or -1 for an unknown label.
func (l Label) Index() int {
	for i, candidate := range labels {
		if candidate == l {
			return i
		}
	}
	return -1
}

func (l Label) Valid() bool {
	return l.Index() >= 0
}

// Display renders the label for people, e.g. "Overweight Level I".
func (l Label) Display() string {
	return strings.ReplaceAll(string(l), "_", " ")
}

// LabelAt is the inverse of Index.
func LabelAt(index int) (Label, error) {
	if index < 0 || index >= len(labels) {
		return "", fmt.Errorf("label index %d out of range", index)
	}
	return labels[index], nil
}

// ParseLabel accepts a label name as written in the dataset.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.TrimSpace(s))
	if !l.Valid() {
		return "", fmt.Errorf("unknown label %q", s)
	}
	return l, nil
}
