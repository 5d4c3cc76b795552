package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"obesityrisk/db"
	"obesityrisk/ml"
	"obesityrisk/pipeline"
)

// writeDataset writes n rows whose label follows the BMI band.
func writeDataset(t *testing.T, n int) string {
	t.Helper()
	rnd := rand.New(rand.NewSource(7))
	bands := []struct {
		label  string
		lo, hi float64
	}{
		{"Insufficient_Weight", 15, 18}, {"Normal_Weight", 19, 24.5}, {"Overweight_Level_I", 25.5, 27},
		{"Overweight_Level_II", 28, 29.5}, {"Obesity_Type_I", 30.5, 34.5}, {"Obesity_Type_II", 35.5, 39.5},
		{"Obesity_Type_III", 40.5, 48},
	}
	var b strings.Builder
	b.WriteString("Gender,Age,Height,Weight,family_history_with_overweight,FAVC,FCVC,NCP,CAEC,CH2O,SCC,FAF,TUE,SMOKE,CALC,MTRANS,NObeyesdad\n")
	yn := []string{"yes", "no"}
	freq := []string{"no", "Sometimes", "Frequently", "Always"}
	trans := []string{"Public_Transportation", "Automobile", "Walking"}
	for i := 0; i < n; i++ {
		band := bands[i%len(bands)]
		h := 1.5 + rnd.Float64()*0.4
		w := (band.lo + rnd.Float64()*(band.hi-band.lo)) * h * h
		fmt.Fprintf(&b, "%s,%d,%.2f,%.1f,%s,%s,%.2f,%d,%s,%d,%s,%d,%d,%s,%s,%s,%s\n",
			[]string{"Female", "Male"}[rnd.Intn(2)], 18+rnd.Intn(40), h, w,
			yn[rnd.Intn(2)], yn[rnd.Intn(2)], 1+rnd.Float64()*2, 1+rnd.Intn(4),
			freq[rnd.Intn(4)], 1+rnd.Intn(3), yn[rnd.Intn(2)], rnd.Intn(4), rnd.Intn(3),
			yn[rnd.Intn(2)], freq[rnd.Intn(4)], trans[rnd.Intn(3)], band.label)
	}
	b.WriteString("Female,abc,1.6,60,yes,no,2,3,no,2,no,1,1,no,no,Walking,Normal_Weight\n")

	path := filepath.Join(t.TempDir(), "obesity.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunTrainsAndSavesArtifact(t *testing.T) {
	dir := t.TempDir()
	data := writeDataset(t, 210)
	out := filepath.Join(dir, "models", "pipeline.json")
	runLog := filepath.Join(dir, "runs.db")

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("log:\n  level: error\ntraining:\n  run_log: %s\n  forest:\n    num_trees: 10\n", runLog)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-config", cfgPath, "-data", data, "-out", out}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	report := stdout.String()
	for _, want := range []string{"accuracy:", "PRECISION", "weighted avg", "model saved to"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	p, err := ml.LoadPipeline(out)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if p.NumTrees() != 10 {
		t.Errorf("num trees = %d, want 10", p.NumTrees())
	}
	info := p.Info()
	if info.TrainSize+info.TestSize+info.Skipped != 210 {
		t.Errorf("sizes %+v do not add up to the 210 valid rows", info)
	}

	log, err := db.OpenRunLog(runLog)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	runs, err := log.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Rejected != 1 || runs[0].ArtifactPath != out {
		t.Errorf("unexpected run log: %+v", runs)
	}
}

func TestLogCleaningReportsStats(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	issues := make([]pipeline.QualityIssue, maxLoggedIssues+5)
	for i := range issues {
		issues[i] = pipeline.QualityIssue{Rule: "record_validation", Line: i + 2, Field: "Age", Message: "out of range"}
	}
	stats := pipeline.CleaningStats{
		TotalProcessed: 100,
		Passed:         75,
		Rejected:       25,
		Corrected:      12,
		Issues:         map[string]int64{"record_validation": 25},
	}

	logCleaning(zap.New(core), issues, stats)

	if n := logs.FilterMessage("row rejected").Len(); n != maxLoggedIssues {
		t.Errorf("logged %d rejected rows, want %d", n, maxLoggedIssues)
	}
	omitted := logs.FilterMessage("further rejected rows omitted").All()
	if len(omitted) != 1 || omitted[0].ContextMap()["remaining"] != int64(5) {
		t.Errorf("unexpected omission entries: %+v", omitted)
	}
	cleaned := logs.FilterMessage("dataset cleaned").All()
	if len(cleaned) != 1 {
		t.Fatalf("got %d stats entries, want 1", len(cleaned))
	}
	ctx := cleaned[0].ContextMap()
	if ctx["corrected"] != int64(12) || ctx["rejected"] != int64(25) || ctx["passed"] != int64(75) {
		t.Errorf("unexpected stats fields: %v", ctx)
	}
}

func TestRunRequiresDataset(t *testing.T) {
	err := run(context.Background(), []string{"-out", filepath.Join(t.TempDir(), "p.json")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "no dataset configured") {
		t.Fatalf("unexpected error: %v", err)
	}

	err = run(context.Background(), []string{"-sqlite", "x.db"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "table name") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunRejectsTinyDataset(t *testing.T) {
	data := writeDataset(t, 7)
	err := run(context.Background(), []string{"-data", data, "-out", filepath.Join(t.TempDir(), "p.json")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "usable rows") {
		t.Fatalf("unexpected error: %v", err)
	}
}
