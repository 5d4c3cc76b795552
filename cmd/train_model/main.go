package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"obesityrisk/config"
	"obesityrisk/db"
	"obesityrisk/logging"
	"obesityrisk/ml"
	"obesityrisk/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "train_model: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("train_model", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	dataPath := fs.String("data", "", "training CSV (overrides training.data)")
	sqlitePath := fs.String("sqlite", "", "SQLite database holding the dataset (overrides training.sqlite)")
	table := fs.String("table", "", "table name inside the SQLite database")
	outPath := fs.String("out", "", "artifact output path (overrides model.path)")
	workers := fs.Int("workers", 0, "parallel tree builders, 0 means GOMAXPROCS")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if *dataPath != "" {
		cfg.Training.Data = *dataPath
		cfg.Training.SQLite = ""
	}
	if *sqlitePath != "" {
		cfg.Training.SQLite = *sqlitePath
	}
	if *table != "" {
		cfg.Training.Table = *table
	}
	if *outPath != "" {
		cfg.Model.Path = *outPath
	}
	if *workers > 0 {
		cfg.Training.Forest.Workers = *workers
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	source, err := selectSource(cfg)
	if err != nil {
		return err
	}
	logger.Info("loading dataset", zap.String("source", source.Name()))
	rows, err := source.LoadRows(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	cleaner := pipeline.NewDataCleaner(logger)
	if cfg.Training.DropDuplicates {
		cleaner.AddRule(pipeline.NewDuplicateDetectionRule())
	}
	samples, issues := cleaner.Clean(rows)
	logCleaning(logger, issues, cleaner.GetStats())
	if need := 2 * len(ml.Labels()); len(samples) < need {
		return fmt.Errorf("only %d usable rows, need at least %d", len(samples), need)
	}

	records, targets := pipeline.SplitSamples(samples)
	start := time.Now()
	result, err := ml.Train(ctx, records, targets, ml.TrainingConfig{
		TestRatio: cfg.Training.TestRatio,
		Forest:    cfg.Training.Forest,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	info := result.Pipeline.Info()
	logger.Info("training finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("train_size", info.TrainSize),
		zap.Int("test_size", info.TestSize),
		zap.Int("skipped_test_rows", info.Skipped),
		zap.Float64("accuracy", info.Accuracy),
	)

	writeReport(stdout, result.Report)

	if err := result.Pipeline.Save(cfg.Model.Path); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	logger.Info("artifact saved", zap.String("path", cfg.Model.Path))

	if cfg.Training.RunLog != "" {
		if err := recordRun(ctx, cfg, source.Name(), len(issues), result); err != nil {
			logger.Warn("training run not recorded", zap.Error(err))
		}
	}

	fmt.Fprintf(stdout, "model saved to %s\n", cfg.Model.Path)
	return nil
}

// maxLoggedIssues caps per-row rejection logs; the stats line still counts all of them.
const maxLoggedIssues = 20

func logCleaning(logger *zap.Logger, issues []pipeline.QualityIssue, stats pipeline.CleaningStats) {
	for i, issue := range issues {
		if i == maxLoggedIssues {
			logger.Warn("further rejected rows omitted", zap.Int("remaining", len(issues)-i))
			break
		}
		logger.Warn("row rejected",
			zap.Int("line", issue.Line),
			zap.String("rule", issue.Rule),
			zap.String("field", issue.Field),
			zap.String("reason", issue.Message),
		)
	}
	logger.Info("dataset cleaned",
		zap.Int64("processed", stats.TotalProcessed),
		zap.Int64("passed", stats.Passed),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("corrected", stats.Corrected),
		zap.Any("issues_by_rule", stats.Issues),
	)
}

func selectSource(cfg *config.Config) (pipeline.Source, error) {
	switch {
	case cfg.Training.SQLite != "":
		if cfg.Training.Table == "" {
			return nil, errors.New("a table name is required with a SQLite source")
		}
		return db.SQLiteSource{Path: cfg.Training.SQLite, Table: cfg.Training.Table}, nil
	case cfg.Training.Data != "":
		return pipeline.CSVSource{Path: cfg.Training.Data}, nil
	}
	return nil, errors.New("no dataset configured: pass -data or -sqlite")
}

func writeReport(w io.Writer, report *ml.EvaluationReport) {
	fmt.Fprintf(w, "accuracy: %.4f (%d/%d)\n\n", report.Accuracy, report.Correct, report.TotalSamples)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"label", "precision", "recall", "f1", "support"})
	for _, c := range report.Classes {
		table.Append([]string{string(c.Label), f2(c.Precision), f2(c.Recall), f2(c.F1), strconv.Itoa(c.Support)})
	}
	table.Append([]string{"macro avg", f2(report.MacroPrecision), f2(report.MacroRecall), f2(report.MacroF1), strconv.Itoa(report.TotalSamples)})
	table.Append([]string{"weighted avg", f2(report.WeightedPrecision), f2(report.WeightedRecall), f2(report.WeightedF1), strconv.Itoa(report.TotalSamples)})
	table.Render()
	fmt.Fprintln(w)
}

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func recordRun(ctx context.Context, cfg *config.Config, source string, rejected int, result *ml.TrainingResult) error {
	runLog, err := db.OpenRunLog(cfg.Training.RunLog)
	if err != nil {
		return err
	}
	defer runLog.Close()

	info := result.Pipeline.Info()
	_, err = runLog.Record(ctx, db.TrainingRun{
		TrainedAt:    info.TrainedAt,
		Source:       source,
		ArtifactPath: cfg.Model.Path,
		TrainSize:    info.TrainSize,
		TestSize:     info.TestSize,
		Rejected:     rejected,
		Accuracy:     info.Accuracy,
		MacroF1:      result.Report.MacroF1,
		Seed:         info.Forest.Seed,
	})
	return err
}
