package ml

import (
	"math"
	"math/rand"
)

var bmiBands = []struct {
	label  Label
	lo, hi float64
}{
	{InsufficientWeight, 15, 18.4},
	{NormalWeight, 18.6, 24.8},
	{OverweightLevelI, 25.2, 27.3},
	{OverweightLevelII, 27.7, 29.8},
	{ObesityTypeI, 30.2, 34.8},
	{ObesityTypeII, 35.2, 39.8},
	{ObesityTypeIII, 40.2, 50},
}

// syntheticDataset labels rows by BMI band so a forest can learn them.
func syntheticDataset(n int, seed int64) ([]PatientRecord, []Label) {
	rnd := rand.New(rand.NewSource(seed))
	pick := func(levels []string) string { return levels[rnd.Intn(len(levels))] }

	records := make([]PatientRecord, n)
	targets := make([]Label, n)
	for i := 0; i < n; i++ {
		band := bmiBands[i%len(bmiBands)]
		height := 1.5 + rnd.Float64()*0.45
		bmi := band.lo + rnd.Float64()*(band.hi-band.lo)
		records[i] = PatientRecord{
			Gender:        pick([]string{"Female", "Male"}),
			Age:           14 + rnd.Intn(47),
			Height:        math.Round(height*100) / 100,
			Weight:        math.Round(bmi*height*height*10) / 10,
			FamilyHistory: pick(yesNo),
			FAVC:          pick(yesNo),
			FCVC:          1 + rnd.Intn(3),
			NCP:           1 + rnd.Intn(4),
			CAEC:          pick(frequency),
			CH2O:          1 + rnd.Intn(3),
			SCC:           pick(yesNo),
			FAF:           rnd.Intn(4),
			TUE:           rnd.Intn(3),
			SMOKE:         pick(yesNo),
			CALC:          pick(frequency),
			MTRANS:        pick([]string{"Public_Transportation", "Automobile", "Motorbike", "Bike", "Walking"}),
		}
		// recompute so the label follows the rounded values
		bmiRounded := records[i].Weight / (records[i].Height * records[i].Height)
		targets[i] = labelForBMI(bmiRounded)
	}
	return records, targets
}

func labelForBMI(bmi float64) Label {
	switch {
	case bmi < 18.5:
		return InsufficientWeight
	case bmi < 25:
		return NormalWeight
	case bmi < 27.5:
		return OverweightLevelI
	case bmi < 30:
		return OverweightLevelII
	case bmi < 35:
		return ObesityTypeI
	case bmi < 40:
		return ObesityTypeII
	}
	return ObesityTypeIII
}

func scenarioRaw() map[string]any {
	return map[string]any{
		"Gender":         "Female",
		"Age":            21,
		"Height":         1.62,
		"Weight":         64.0,
		"family_history": "yes",
		"FAVC":           "yes",
		"FCVC":           2,
		"NCP":            3,
		"CAEC":           "Sometimes",
		"CH2O":           2,
		"SCC":            "no",
		"FAF":            0,
		"TUE":            1,
		"SMOKE":          "no",
		"CALC":           "Sometimes",
		"MTRANS":         "Public_Transportation",
	}
}

func smallForest() ForestConfig {
	cfg := DefaultForestConfig()
	cfg.NumTrees = 15
	cfg.Workers = 4
	return cfg
}
