package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TrainingRun is one row of the training log.
type TrainingRun struct {
	ID           int64     `json:"id"`
	TrainedAt    time.Time `json:"trained_at"`
	Source       string    `json:"source"`
	ArtifactPath string    `json:"artifact_path"`
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	Rejected     int       `json:"rejected_rows"`
	Accuracy     float64   `json:"accuracy"`
	MacroF1      float64   `json:"macro_f1"`
	Seed         int64     `json:"seed"`
}

// RunLog appends training runs to a SQLite table.
type RunLog struct {
	database *sql.DB
}

// OpenRunLog opens (creating if needed) the database at path.
func OpenRunLog(path string) (*RunLog, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	_, err = database.Exec(`
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        trained_at DATETIME NOT NULL,
        source TEXT NOT NULL,
        artifact_path TEXT NOT NULL,
        train_size INTEGER NOT NULL,
        test_size INTEGER NOT NULL,
        rejected_rows INTEGER NOT NULL,
        accuracy REAL NOT NULL,
        macro_f1 REAL NOT NULL,
        seed INTEGER NOT NULL
    );`)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create training_log: %w", err)
	}
	return &RunLog{database: database}, nil
}

// Record inserts run and returns its id.
func (l *RunLog) Record(ctx context.Context, run TrainingRun) (int64, error) {
	res, err := l.database.ExecContext(ctx, `
        INSERT INTO training_log (
            trained_at, source, artifact_path, train_size, test_size,
            rejected_rows, accuracy, macro_f1, seed
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.TrainedAt.UTC(),
		run.Source,
		run.ArtifactPath,
		run.TrainSize,
		run.TestSize,
		run.Rejected,
		run.Accuracy,
		run.MacroF1,
		run.Seed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]TrainingRun, error) {
	rows, err := l.database.QueryContext(ctx, `
        SELECT id, trained_at, source, artifact_path, train_size, test_size,
               rejected_rows, accuracy, macro_f1, seed
        FROM training_log
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var r TrainingRun
		err := rows.Scan(&r.ID, &r.TrainedAt, &r.Source, &r.ArtifactPath, &r.TrainSize,
			&r.TestSize, &r.Rejected, &r.Accuracy, &r.MacroF1, &r.Seed)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (l *RunLog) Close() error {
	return l.database.Close()
}
