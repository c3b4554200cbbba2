// Package trials provides the clinical trial eligibility store backing
// the trial-matching endpoint.
package trials

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/leukemia-survival-server/internal/domain"
)

// defaultCacheSize bounds the match-result cache when config leaves it 0.
const defaultCacheSize = 128

// cacheKey identifies a match query; the store is read-mostly so cached
// results never go stale within a process lifetime after seeding.
type cacheKey struct {
	age        float64
	flt3       float64
	transplant float64
	riskClass  float64
}

// Store is a SQLite-backed clinical trial registry with an in-process
// LRU cache over match results.
type Store struct {
	db     *sql.DB
	cache  *lru.Cache[cacheKey, []domain.Trial]
	logger *logrus.Logger
}

// seedTrials is the bundled trial set, inserted when the table is empty.
var seedTrials = []domain.Trial{
	{TrialID: "NCT043289", Title: "Novel FLT3 Inhibitor for Relapsed AML", Category: "Targeted Therapy", Status: "Recruiting", MinAge: 18, MaxAge: 99, RequireFLT3: true},
	{TrialID: "NCT055210", Title: "Reduced-Intensity Conditioning for Elderly Patients", Category: "Transplant Protocol", Status: "Recruiting", MinAge: 61, MaxAge: 99},
	{TrialID: "NCT038472", Title: "Post-Transplant Maintenance Therapy", Category: "Maintenance", Status: "Recruiting", MinAge: 18, MaxAge: 99, RequireTx: true},
	{TrialID: "NCT011239", Title: "High-Dose Cytarabine Optimization", Category: "Chemotherapy", Status: "Recruiting", MinAge: 18, MaxAge: 99, RiskClass: 3},
	{TrialID: "NCT099821", Title: "Long-Term Follow-up of AML Survivors", Category: "Observational", Status: "Recruiting", MinAge: 0, MaxAge: 120},
}

// NewStore opens (creating if necessary) the trial database, ensures the
// schema, and seeds the bundled trial set on first run.
func NewStore(dbPath string, cacheSize int, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[cacheKey, []domain.Trial](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}

	s := &Store{db: db, cache: cache, logger: logger}
	if err := s.seedIfEmpty(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed trials: %w", err)
	}
	return s, nil
}

// createSchema creates the trial table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trial_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Recruiting',
		min_age REAL NOT NULL DEFAULT 0,
		max_age REAL NOT NULL DEFAULT 120,
		requires_flt3 INTEGER NOT NULL DEFAULT 0,
		requires_transplant INTEGER NOT NULL DEFAULT 0,
		required_risk_class REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_trials_age ON trials(min_age, max_age);
	`
	_, err := db.Exec(schema)
	return err
}

// seedIfEmpty inserts the bundled trial set when the table has no rows.
func (s *Store) seedIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trials").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range seedTrials {
		if err := s.Insert(ctx, &t); err != nil {
			return err
		}
	}
	s.logger.WithField("count", len(seedTrials)).Info("Seeded clinical trial registry")
	return nil
}

// Insert adds a trial to the registry and invalidates the match cache.
func (s *Store) Insert(ctx context.Context, t *domain.Trial) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (
			trial_id, title, category, status,
			min_age, max_age, requires_flt3, requires_transplant, required_risk_class
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.TrialID, t.Title, t.Category, t.Status,
		t.MinAge, t.MaxAge, boolToInt(t.RequireFLT3), boolToInt(t.RequireTx), t.RiskClass,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	t.ID = id
	s.cache.Purge()
	return nil
}

// Count returns the number of registered trials.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trials").Scan(&count)
	return count, err
}

// Match returns the trials whose eligibility criteria the patient profile
// satisfies: age inside the window, FLT3 and transplant requirements met,
// and the required risk class matched when one is set.
func (s *Store) Match(ctx context.Context, profile domain.TrialProfile) ([]domain.Trial, error) {
	key := cacheKey{
		age:        profile.Age,
		flt3:       profile.FLT3,
		transplant: profile.Transplant,
		riskClass:  profile.RiskClass,
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trial_id, title, category, status,
			min_age, max_age, requires_flt3, requires_transplant, required_risk_class
		FROM trials
		WHERE min_age <= ? AND max_age >= ?
			AND (requires_flt3 = 0 OR ? = 1)
			AND (requires_transplant = 0 OR ? = 1)
			AND (required_risk_class = 0 OR required_risk_class = ?)
		ORDER BY trial_id
	`, profile.Age, profile.Age, int(profile.FLT3), int(profile.Transplant), profile.RiskClass)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var matches []domain.Trial
	for rows.Next() {
		var t domain.Trial
		var flt3, tx int
		err := rows.Scan(&t.ID, &t.TrialID, &t.Title, &t.Category, &t.Status,
			&t.MinAge, &t.MaxAge, &flt3, &tx, &t.RiskClass)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		t.RequireFLT3 = flt3 != 0
		t.RequireTx = tx != 0
		matches = append(matches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Add(key, matches)
	return matches, nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
