// Package db stores evaluation runs, their metric summaries and per-sample
// predictions in SQLite so results of many runs can be compared.
package db

import (
	"compress/gzip"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/evaluation"
	"github.com/petersaints/YanuX-Cruncher/internal/monitoring"
	"github.com/petersaints/YanuX-Cruncher/internal/timeutil"
	"github.com/petersaints/YanuX-Cruncher/internal/version"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Connection pragmas applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// OpenDB opens the database at path without touching its schema.
func OpenDB(path string) (*DB, error) {
	dsn := "file:" + filepath.ToSlash(path)
	for i, p := range pragmas {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		dsn += sep + "_pragma=" + p
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database at path and applies all pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SetClock replaces the clock used to stamp new runs.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

// Run is one invocation of the evaluation pipeline.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	Version   string
	GitSHA    string
	Config    json.RawMessage
}

// CreateRun records a new run stamped with the build version. config is
// stored as JSON for later inspection.
func (db *DB) CreateRun(config any) (*Run, error) {
	cfg, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode run config: %w", err)
	}
	run := &Run{
		ID:        uuid.New(),
		StartedAt: db.clock.Now().UTC(),
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		Config:    cfg,
	}
	_, err = db.Exec(
		`INSERT INTO evaluation_runs (run_id, started_unix_nanos, version, git_sha, config_json)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.UnixNano(), run.Version, run.GitSHA, string(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Runs returns the most recent runs first, at most limit of them.
func (db *DB) Runs(limit int) ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, started_unix_nanos, version, git_sha, config_json
		FROM evaluation_runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id      string
			started int64
			cfg     string
			run     Run
		)
		if err := rows.Scan(&id, &started, &run.Version, &run.GitSHA, &cfg); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run %q: %w", id, err)
		}
		run.StartedAt = time.Unix(0, started).UTC()
		run.Config = json.RawMessage(cfg)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordSummary stores the metrics of one scenario. NaN values are stored
// as NULL.
func (db *DB) RecordSummary(runID uuid.UUID, s evaluation.ScenarioSummary) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO scenario_summaries (run_id, scenario_name, ordinal, metric, value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range s.Summary {
		if _, err := stmt.Exec(runID.String(), s.Scenario, i, m.Name, nullFloat(m.Value)); err != nil {
			return fmt.Errorf("scenario %s metric %s: %w", s.Scenario, m.Name, err)
		}
	}
	return tx.Commit()
}

// Summaries returns the scenario summaries of a run in the order they were
// recorded, with metrics in summary order.
func (db *DB) Summaries(runID uuid.UUID) ([]evaluation.ScenarioSummary, error) {
	rows, err := db.Query(
		`SELECT scenario_name, metric, value FROM scenario_summaries
		WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []evaluation.ScenarioSummary
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, metric string
			value        sql.NullFloat64
		)
		if err := rows.Scan(&name, &metric, &value); err != nil {
			return nil, err
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, evaluation.ScenarioSummary{Scenario: name})
		}
		out[i].Summary = append(out[i].Summary, evaluation.Metric{Name: metric, Value: v})
	}
	return out, rows.Err()
}

// PredictionColumns names the columns of an evaluation result.
type PredictionColumns struct {
	X, Y, XPredicted, YPredicted, Error string
}

// DefaultPredictionColumns matches evaluation.Evaluate with default options
// over the x and y coordinates.
func DefaultPredictionColumns() PredictionColumns {
	return PredictionColumns{
		X:          dataset.ColumnX,
		Y:          dataset.ColumnY,
		XPredicted: dataset.ColumnX + evaluation.DefaultPredictedSuffix,
		YPredicted: dataset.ColumnY + evaluation.DefaultPredictedSuffix,
		Error:      evaluation.DefaultErrorColumn,
	}
}

// RecordPredictions stores every row of an evaluation result in a single
// transaction.
func (db *DB) RecordPredictions(runID uuid.UUID, scenario string, result *dataset.Table, cols PredictionColumns) error {
	names := []string{cols.X, cols.Y, cols.XPredicted, cols.YPredicted, cols.Error}
	values := make([][]float64, len(names))
	for i, c := range names {
		v, err := result.Float(c)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", scenario, err)
		}
		values[i] = v
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO predictions (run_id, scenario_name, x, y, x_predicted, y_predicted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for row := 0; row < result.Len(); row++ {
		if _, err := stmt.Exec(runID.String(), scenario,
			values[0][row], values[1][row], values[2][row], values[3][row], values[4][row]); err != nil {
			return fmt.Errorf("scenario %s row %d: %w", scenario, row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	monitoring.Verbosef("stored %d predictions for %s", result.Len(), scenario)
	return nil
}

// PredictionCount returns how many predictions a run stored for scenario.
func (db *DB) PredictionCount(runID uuid.UUID, scenario string) (int, error) {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM predictions WHERE run_id = ? AND scenario_name = ?`,
		runID.String(), scenario).Scan(&n)
	return n, err
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// TableStats is the row count of one table.
type TableStats struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// DatabaseStats summarises the stored results.
type DatabaseStats struct {
	Path   string       `json:"path"`
	Tables []TableStats `json:"tables"`
}

// Stats counts the rows of each results table.
func (db *DB) Stats() (*DatabaseStats, error) {
	stats := &DatabaseStats{Path: db.path}
	for _, table := range []string{"evaluation_runs", "scenario_summaries", "predictions"} {
		var n int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: table, Rows: n})
	}
	return stats, nil
}

// AttachAdminRoutes mounts the tailsql console, a stats endpoint and a
// backup download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Evaluation results",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Row counts of the results tables", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir, err := os.MkdirTemp("", "cruncher-backup-")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup directory: %v", err), http.StatusInternalServerError)
			return
		}
		defer os.RemoveAll(dir)

		backupName := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		backupPath := filepath.Join(dir, backupName)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupName))
		w.Header().Set("Content-Type", "application/gzip")
		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			monitoring.Logf("backup download failed: %v", err)
		}
	}))
	return nil
}
