// Package store records analysis runs in a SQLite database: the cluster
// records and counts of every dataset, the per-thickness results and the
// attenuation fit. The schema is managed with embedded migrations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"betaatten/internal/models"
	"betaatten/pkg/analysis"
	"betaatten/pkg/attenuation"
)

// ErrNotFound is returned when a run or its fit is not in the store.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed run store
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for migration messages
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens or creates the database at path and migrates it to the
// latest schema.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// RunMeta describes how a run was produced
type RunMeta struct {
	DataDir   string
	Policy    string
	CountType models.ClusterType
}

// RunInfo is a stored run
type RunInfo struct {
	RunMeta
	ID        uuid.UUID
	CreatedAt time.Time
}

// SaveRun stores a processed run in a single transaction and returns its ID
func (s *Store) SaveRun(ctx context.Context, meta RunMeta, run *analysis.Run) (uuid.UUID, error) {
	id := uuid.New()
	created := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, data_dir, policy, count_type) VALUES (?, ?, ?, ?, ?)`,
		id.String(), created.Format(time.RFC3339Nano), meta.DataDir, meta.Policy, meta.CountType.String(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, dr := range run.Datasets {
		if err := insertDataset(ctx, tx, id, dr); err != nil {
			return uuid.Nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counts (run_id, thickness, count) VALUES (?, 0, ?)`, id.String(), run.Results.Baseline,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert baseline: %w", err)
	}
	for _, d := range run.Results.Thicknesses() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO counts (run_id, thickness, count) VALUES (?, ?, ?)`, id.String(), d, run.Results.Counts[d],
		); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert count: %w", err)
		}
	}

	if run.Fit != nil {
		if err := insertFit(ctx, tx, id, run.Fit); err != nil {
			return uuid.Nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func insertDataset(ctx context.Context, tx *sql.Tx, id uuid.UUID, dr *analysis.DatasetResult) error {
	name := dr.Dataset.Name
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (run_id, name, value, unit, frames, hits, masked, mean_counts, mean_hits, mean_radius)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), name, dr.Dataset.Value, dr.Dataset.Unit, dr.Frames, dr.Hits, dr.Masked,
		dr.Properties.MeanCounts, dr.Properties.MeanHits, dr.Properties.MeanRadius,
	); err != nil {
		return fmt.Errorf("failed to insert dataset %s: %w", name, err)
	}

	for t, n := range dr.Counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO type_counts (run_id, dataset, type, count) VALUES (?, ?, ?, ?)`,
			id.String(), name, t.String(), n,
		); err != nil {
			return fmt.Errorf("failed to insert type count: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO klusters (run_id, dataset, id, size, radius_uw, density_uw, totalcounts, maxcounts,
			xmin, xmax, ymin, ymax, xbar, ybar, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range dr.Records {
		if _, err := stmt.ExecContext(ctx,
			id.String(), name, r.ID, r.Size, r.RadiusUW, r.DensityUW, r.TotalCounts, r.MaxCounts,
			r.XMin, r.XMax, r.YMin, r.YMax, r.XBar, r.YBar, r.Type.String(),
		); err != nil {
			return fmt.Errorf("failed to insert cluster %s: %w", r.ID, err)
		}
	}
	return nil
}

func insertFit(ctx context.Context, tx *sql.Tx, id uuid.UUID, fit *attenuation.Result) error {
	var pValue sql.NullFloat64
	if fit.PValue != nil {
		pValue = sql.NullFloat64{Float64: *fit.PValue, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fits (run_id, slope, intercept, mu, mu_err, b0, mfp, mfp_err, chi2, dof, p_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), fit.Slope, fit.Intercept, fit.Mu, fit.MuErr, fit.B0,
		fit.MeanFreePath, fit.MeanFreePathErr, fit.ChiSquared, fit.DegreesOfFreedom, pValue,
	); err != nil {
		return fmt.Errorf("failed to insert fit: %w", err)
	}
	return nil
}

// Runs lists the stored runs, newest first
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, data_dir, policy, count_type FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Run returns one stored run
func (s *Store) Run(ctx context.Context, id uuid.UUID) (RunInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, data_dir, policy, count_type FROM runs WHERE id = ?`, id.String())
	info, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return info, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunInfo, error) {
	var (
		info               RunInfo
		id, created, ctype string
	)
	if err := row.Scan(&id, &created, &info.DataDir, &info.Policy, &ctype); err != nil {
		return RunInfo{}, err
	}

	var err error
	if info.ID, err = uuid.Parse(id); err != nil {
		return RunInfo{}, fmt.Errorf("bad run id %q: %w", id, err)
	}
	if info.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return RunInfo{}, fmt.Errorf("bad run timestamp %q: %w", created, err)
	}
	if info.CountType, err = models.ParseClusterType(ctype); err != nil {
		return RunInfo{}, err
	}
	return info, nil
}

// Results loads the per-thickness counts of a run
func (s *Store) Results(ctx context.Context, id uuid.UUID) (analysis.Results, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thickness, count FROM counts WHERE run_id = ? ORDER BY thickness`, id.String())
	if err != nil {
		return analysis.Results{}, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	r := analysis.NewResults(0)
	found := false
	for rows.Next() {
		var (
			d float64
			n int
		)
		if err := rows.Scan(&d, &n); err != nil {
			return analysis.Results{}, err
		}
		r.Set(d, n)
		found = true
	}
	if err := rows.Err(); err != nil {
		return analysis.Results{}, err
	}
	if !found {
		return analysis.Results{}, fmt.Errorf("results of run %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// Fit loads the attenuation fit of a run. Fitted points are not stored.
func (s *Store) Fit(ctx context.Context, id uuid.UUID) (*attenuation.Result, error) {
	var (
		r      attenuation.Result
		pValue sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT slope, intercept, mu, mu_err, b0, mfp, mfp_err, chi2, dof, p_value FROM fits WHERE run_id = ?`,
		id.String(),
	).Scan(&r.Slope, &r.Intercept, &r.Mu, &r.MuErr, &r.B0, &r.MeanFreePath, &r.MeanFreePathErr,
		&r.ChiSquared, &r.DegreesOfFreedom, &pValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fit of run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fit: %w", err)
	}

	r.MuErrPercent = 100 * r.MuErr / r.Mu
	r.MeanFreePathErrPercent = 100 * r.MeanFreePathErr / r.MeanFreePath
	if pValue.Valid {
		r.PValue = &pValue.Float64
	}
	return &r, nil
}

// TypeCounts loads the per-type cluster counts of one dataset of a run
func (s *Store) TypeCounts(ctx context.Context, id uuid.UUID, dataset string) (analysis.TypeCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, count FROM type_counts WHERE run_id = ? AND dataset = ?`, id.String(), dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query type counts: %w", err)
	}
	defer rows.Close()

	counts := make(analysis.TypeCounts)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		t, err := models.ParseClusterType(name)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// Records loads the cluster records of one dataset of a run, optionally
// restricted to some types
func (s *Store) Records(ctx context.Context, id uuid.UUID, dataset string, types ...models.ClusterType) ([]models.KlusterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, size, radius_uw, density_uw, totalcounts, maxcounts, xmin, xmax, ymin, ymax, xbar, ybar, type
		FROM klusters WHERE run_id = ? AND dataset = ? ORDER BY rowid`, id.String(), dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	want := make(map[models.ClusterType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var records []models.KlusterRecord
	for rows.Next() {
		var (
			r    models.KlusterRecord
			name string
		)
		if err := rows.Scan(&r.ID, &r.Size, &r.RadiusUW, &r.DensityUW, &r.TotalCounts, &r.MaxCounts,
			&r.XMin, &r.XMax, &r.YMin, &r.YMax, &r.XBar, &r.YBar, &name); err != nil {
			return nil, err
		}
		if r.Type, err = models.ParseClusterType(name); err != nil {
			return nil, err
		}
		if len(want) > 0 && !want[r.Type] {
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
