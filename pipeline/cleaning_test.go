package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obesityrisk/ml"
)

const header = "Gender,Age,Height,Weight,family_history_with_overweight,FAVC,FCVC,NCP,CAEC,CH2O,SCC,FAF,TUE,SMOKE,CALC,MTRANS,NObeyesdad\n"

func validRow() Row {
	return Row{Line: 2, Values: map[string]string{
		"Gender": "Female", "Age": "21", "Height": "1.62", "Weight": "64",
		"family_history": "yes", "FAVC": "no", "FCVC": "2", "NCP": "3",
		"CAEC": "Sometimes", "CH2O": "2", "SCC": "no", "FAF": "0", "TUE": "1",
		"SMOKE": "no", "CALC": "no", "MTRANS": "Public_Transportation",
		"Obesity": "Normal_Weight",
	}}
}

func TestReadCSVAliasesAndBOM(t *testing.T) {
	data := "\ufeff" + header +
		"Female,21,1.62,64,yes,no,2,3,Sometimes,2,no,0,1,no,no,Public_Transportation,Normal_Weight\n" +
		"Male, 23 ,1.8,77,yes,no,2.45,3,Sometimes,2,no,2,1,no,Frequently,Walking,Normal_Weight\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "Female", rows[0].Values["Gender"])
	assert.Equal(t, "yes", rows[0].Values["family_history"])
	assert.Equal(t, "Normal_Weight", rows[0].Values[ml.LabelColumn])
	assert.Equal(t, "23", rows[1].Values["Age"])
	_, hasAlias := rows[0].Values["NObeyesdad"]
	assert.False(t, hasAlias)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(context.Background(), strings.NewReader("Obesity,NObeyesdad\na,b\n"))
	assert.ErrorContains(t, err, "duplicate column")

	_, err = ReadCSV(context.Background(), strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorContains(t, err, "line 2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReadCSV(ctx, strings.NewReader("a,b\n1,2\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanAcceptsAndRounds(t *testing.T) {
	cleaner := NewDataCleaner(nil)

	fractional := validRow()
	fractional.Line = 3
	fractional.Values["FCVC"] = "2.45"
	fractional.Values["NCP"] = "2.5"
	fractional.Values["Age"] = "21.6"

	samples, issues := cleaner.Clean([]Row{validRow(), fractional})
	require.Empty(t, issues)
	require.Len(t, samples, 2)

	assert.Equal(t, 2, samples[1].Record.FCVC)
	assert.Equal(t, 2, samples[1].Record.NCP, "half rounds to even")
	assert.Equal(t, 22, samples[1].Record.Age)
	assert.Equal(t, ml.NormalWeight, samples[0].Label)

	stats := cleaner.GetStats()
	assert.EqualValues(t, 2, stats.TotalProcessed)
	assert.EqualValues(t, 2, stats.Passed)
	assert.EqualValues(t, 1, stats.Corrected)
}

func TestCleanRejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(Row) Row
		rule  string
		field string
	}{
		{"missing column", func(r Row) Row { delete(r.Values, "SMOKE"); return r }, "required_columns", "SMOKE"},
		{"blank label", func(r Row) Row { r.Values["Obesity"] = ""; return r }, "required_columns", "Obesity"},
		{"not a number", func(r Row) Row { r.Values["FAF"] = "often"; return r }, "ordinal_rounding", "FAF"},
		{"unknown category", func(r Row) Row { r.Values["MTRANS"] = "Teleport"; return r }, "category_domain", "MTRANS"},
		{"out of range", func(r Row) Row { r.Values["Height"] = "3.1"; return r }, "record_validation", "Height"},
		{"unknown label", func(r Row) Row { r.Values["Obesity"] = "Obesity_Type_IV"; return r }, "label_validation", "Obesity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaner := NewDataCleaner(nil)
			samples, issues := cleaner.Clean([]Row{tt.edit(validRow())})
			assert.Empty(t, samples)
			require.Len(t, issues, 1)
			assert.Equal(t, tt.rule, issues[0].Rule)
			assert.Equal(t, tt.field, issues[0].Field)
			assert.Equal(t, 2, issues[0].Line)
			assert.EqualValues(t, 1, cleaner.GetStats().Issues[tt.rule])
		})
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	row := validRow()
	row.Values["FCVC"] = "2.7"
	NewDataCleaner(nil).Clean([]Row{row})
	assert.Equal(t, "2.7", row.Values["FCVC"])
}

func TestDuplicateDetectionRule(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	cleaner.AddRule(NewDuplicateDetectionRule())

	second := validRow()
	second.Line = 3
	samples, issues := cleaner.Clean([]Row{validRow(), second})
	assert.Len(t, samples, 1)
	require.Len(t, issues, 1)
	assert.Equal(t, "duplicate_detection", issues[0].Rule)
	assert.Contains(t, issues[0].Message, "line 2")
}

func TestSplitSamples(t *testing.T) {
	samples, _ := NewDataCleaner(nil).Clean([]Row{validRow()})
	records, targets := SplitSamples(samples)
	require.Len(t, records, 1)
	assert.Equal(t, "Female", records[0].Gender)
	assert.Equal(t, []ml.Label{ml.NormalWeight}, targets)
}
