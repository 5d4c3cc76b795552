package assessment

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"obesityrisk/ml"
)

// Tier groups labels by how urgently they call for follow-up.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
)

// Guidance is the fixed text shown alongside a label.
type Guidance struct {
	Tier            Tier     `json:"tier"`
	Headline        string   `json:"headline"`
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations"`
}

var guidance = map[ml.Label]Guidance{
	ml.InsufficientWeight: {
		Tier:     TierLow,
		Headline: "Below healthy weight",
		Message:  "The profile matches people whose weight is below the healthy range for their height.",
		Recommendations: []string{
			"Review calorie and protein intake with a nutrition professional",
			"Rule out underlying conditions that affect appetite or absorption",
		},
	},
	ml.NormalWeight: {
		Tier:     TierLow,
		Headline: "Healthy weight range",
		Message:  "The profile matches people within the healthy weight range.",
		Recommendations: []string{
			"Keep current activity and eating habits",
			"Reassess if weight or habits change noticeably",
		},
	},
	ml.OverweightLevelI: {
		Tier:     TierModerate,
		Headline: "Overweight, level I",
		Message:  "The profile matches people slightly above the healthy weight range.",
		Recommendations: []string{
			"Increase weekly physical activity",
			"Reduce high-calorie food and snacking between meals",
		},
	},
	ml.OverweightLevelII: {
		Tier:     TierModerate,
		Headline: "Overweight, level II",
		Message:  "The profile matches people clearly above the healthy weight range.",
		Recommendations: []string{
			"Plan a structured activity routine",
			"Discuss a dietary plan with a nutrition professional",
			"Monitor blood pressure and glucose",
		},
	},
	ml.ObesityTypeI: {
		Tier:     TierHigh,
		Headline: "Obesity, type I",
		Message:  "The profile matches people with class I obesity.",
		Recommendations: []string{
			"Schedule a clinical evaluation",
			"Start a supervised weight management programme",
			"Screen for hypertension, diabetes and dyslipidaemia",
		},
	},
	ml.ObesityTypeII: {
		Tier:     TierHigh,
		Headline: "Obesity, type II",
		Message:  "The profile matches people with class II obesity.",
		Recommendations: []string{
			"Schedule a clinical evaluation soon",
			"Consider a multidisciplinary weight management programme",
			"Screen for obesity-related conditions",
		},
	},
	ml.ObesityTypeIII: {
		Tier:     TierHigh,
		Headline: "Obesity, type III",
		Message:  "The profile matches people with class III obesity.",
		Recommendations: []string{
			"Seek specialist clinical care",
			"Discuss medical and surgical treatment options",
			"Screen for obesity-related conditions",
		},
	},
}

// GuidanceFor returns the presentation entry for label. Every valid label has one.
func GuidanceFor(label ml.Label) (Guidance, bool) {
	g, ok := guidance[label]
	if !ok {
		return Guidance{}, false
	}
	g.Recommendations = append([]string(nil), g.Recommendations...)
	return g, true
}

// BMI is weight / height², rounded to one decimal.
func BMI(rec ml.PatientRecord) float64 {
	if rec.Height <= 0 {
		return 0
	}
	return math.Round(rec.Weight/(rec.Height*rec.Height)*10) / 10
}

// BMIBand is the WHO adult category for bmi.
func BMIBand(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	}
	return "obese"
}

var printer = message.NewPrinter(language.English)

// FormatBMI renders bmi for display, e.g. "24.4 kg/m²".
func FormatBMI(bmi float64) string {
	return printer.Sprintf("%.1f kg/m²", bmi)
}

// RiskFactor is one lifestyle item flagged on the checklist.
type RiskFactor struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

var riskChecks = []struct {
	field       string
	description string
	present     func(ml.PatientRecord) bool
}{
	{"family_history", "Family history of overweight", func(r ml.PatientRecord) bool { return r.FamilyHistory == "yes" }},
	{"FAVC", "Frequent high-calorie food", func(r ml.PatientRecord) bool { return r.FAVC == "yes" }},
	{"FAF", "No regular physical activity", func(r ml.PatientRecord) bool { return r.FAF == 0 }},
	{"FCVC", "Low vegetable intake", func(r ml.PatientRecord) bool { return r.FCVC == 1 }},
	{"CH2O", "Low water intake", func(r ml.PatientRecord) bool { return r.CH2O == 1 }},
	{"TUE", "High screen time", func(r ml.PatientRecord) bool { return r.TUE == 2 }},
	{"CAEC", "Frequent snacking between meals", func(r ml.PatientRecord) bool { return r.CAEC == "Frequently" || r.CAEC == "Always" }},
	{"CALC", "Frequent alcohol consumption", func(r ml.PatientRecord) bool { return r.CALC == "Frequently" || r.CALC == "Always" }},
	{"SMOKE", "Smoker", func(r ml.PatientRecord) bool { return r.SMOKE == "yes" }},
	{"MTRANS", "Car as main transport", func(r ml.PatientRecord) bool { return r.MTRANS == "Automobile" }},
}

// RiskFactors lists the checklist items present in rec, in checklist order.
func RiskFactors(rec ml.PatientRecord) []RiskFactor {
	out := []RiskFactor{}
	for _, c := range riskChecks {
		if c.present(rec) {
			out = append(out, RiskFactor{Field: c.field, Description: c.description})
		}
	}
	return out
}
