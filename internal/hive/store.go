// Package hive implements the Hive Coordinator (spec.md §4.5): a
// persistent job store, per-job leaderboard, node heartbeat registry,
// community submission inbox, and a path-jailed data-file sync surface,
// exposed over HTTP+JSON.
//
// The store is grounded on the ehrlich-b-wingthing reference repo's
// internal/store/store.go: database/sql over modernc.org/sqlite, an
// embed.FS migrations directory applied in order and tracked in a
// schema_migrations table, and WAL journaling for concurrent readers.
package hive

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is Hive's sole shared mutable resource (spec.md §5); every method
// accesses the database through a short-lived transaction or a snapshot
// read, never holding the connection across a network call.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// any pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open hive store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate hive store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// RegisterJob upserts a JobDescription by its canonical job_id, never
// overwriting an existing job's content (spec.md §4.5). Returns whether a
// new row was inserted.
func (s *Store) RegisterJob(j JobRow) (inserted bool, err error) {
	res, err := s.db.Exec(`INSERT INTO keyboards (hash, name, definition) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`, j.KeyboardHash, j.KeyboardName, j.KeyboardJSON)
	if err != nil {
		return false, fmt.Errorf("upsert keyboard: %w", err)
	}
	_ = res

	if _, err := s.db.Exec(`INSERT INTO scoring_profiles (hash, weights) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING`, j.ProfileHash, j.WeightsJSON); err != nil {
		return false, fmt.Errorf("upsert scoring profile: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO search_configs (hash, params) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING`, j.ConfigHash, j.ParamsJSON); err != nil {
		return false, fmt.Errorf("upsert search config: %w", err)
	}

	result, err := s.db.Exec(`INSERT INTO jobs (id, keyboard_hash, profile_hash, config_hash, pinned_keys, corpus_name, cost_matrix_name, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		j.JobId, j.KeyboardHash, j.ProfileHash, j.ConfigHash, j.PinnedKeysJSON, j.CorpusName, j.CostMatrixName, j.DescriptionJSON)
	if err != nil {
		return false, fmt.Errorf("upsert job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// JobRow is the flattened, already-serialized form of a JobDescription
// persisted across the keyboards/scoring_profiles/search_configs/jobs
// tables (spec.md §6's dedup-by-content-hash tables).
type JobRow struct {
	JobId           string
	KeyboardHash    string
	KeyboardName    string
	KeyboardJSON    string
	ProfileHash     string
	WeightsJSON     string
	ConfigHash      string
	ParamsJSON      string
	PinnedKeysJSON  string
	CorpusName      string
	CostMatrixName  string
	DescriptionJSON string
}

// ActiveJob is a job eligible for assignment along with its recent
// improvement-submission count, as returned by GetActiveJob.
type ActiveJob struct {
	JobId           string
	DescriptionJSON string
	CreatedAt       time.Time
	RecentAccepted  int
}

// GetActiveJob returns the earliest-created job with fewer than
// resultSaturation accepted-improvement submissions in the last hour, or nil
// if every job is saturated. It keeps no rotation state: while that job stays
// below saturation, every call returns it, and later jobs are not handed out.
// performance_rating is deliberately not consulted (spec.md §9 Open
// Question: rating-weighted assignment is out of scope).
func (s *Store) GetActiveJob(resultSaturation int) (*ActiveJob, error) {
	rows, err := s.db.Query(`
		SELECT j.id, j.description, j.created_at,
		       (SELECT COUNT(*) FROM results r
		          WHERE r.job_id = j.id AND r.accepted = 1
		            AND r.submitted_at >= datetime('now', '-1 hour')) AS recent_accepted
		FROM jobs j
		ORDER BY j.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a ActiveJob
		var created string
		if err := rows.Scan(&a.JobId, &a.DescriptionJSON, &created, &a.RecentAccepted); err != nil {
			return nil, fmt.Errorf("scan active job: %w", err)
		}
		if a.RecentAccepted < resultSaturation {
			a.CreatedAt, _ = time.Parse(time.DateTime, created)
			return &a, nil
		}
	}
	return nil, rows.Err()
}

// SubmitResult records a result and applies the best-per-job conditional
// update invariant (spec.md §4.5): `UPDATE ... WHERE job_id=? AND (best IS
// NULL OR score < best.score)`. Returns whether this submission became the
// new best.
func (s *Store) SubmitResult(jobId, nodeId, layout string, score float64) (accepted bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin result tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE jobs SET best_score = ?, best_layout = ?, best_node_id = ?
		WHERE id = ? AND (best_score IS NULL OR ? < best_score)`,
		score, layout, nodeId, jobId, score)
	if err != nil {
		return false, fmt.Errorf("conditional best update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	accepted = n > 0

	if _, err := tx.Exec(`INSERT INTO results (job_id, node_id, layout, score, accepted) VALUES (?, ?, ?, ?, ?)`,
		jobId, nodeId, layout, score, boolToInt(accepted)); err != nil {
		return false, fmt.Errorf("record result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit result tx: %w", err)
	}
	return accepted, nil
}

// Status is the response shape for get_status (spec.md §4.5).
type Status struct {
	ActiveNodes int
	BestScore   *float64
	BestLayout  string
}

// GetStatus returns the current best result and active-node count for a
// job, where "active" means a heartbeat referencing this job within
// stalenessThreshold.
func (s *Store) GetStatus(jobId string, stalenessThreshold time.Duration) (*Status, error) {
	var bestScore sql.NullFloat64
	var bestLayout sql.NullString
	err := s.db.QueryRow(`SELECT best_score, best_layout FROM jobs WHERE id = ?`, jobId).Scan(&bestScore, &bestLayout)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound{JobId: jobId}
	}
	if err != nil {
		return nil, fmt.Errorf("query job status: %w", err)
	}

	cutoff := time.Now().Add(-stalenessThreshold)
	var active int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE current_job_id = ? AND last_heartbeat_at >= ?`,
		jobId, cutoff.Format(time.DateTime)).Scan(&active); err != nil {
		return nil, fmt.Errorf("count active nodes: %w", err)
	}

	st := &Status{ActiveNodes: active}
	if bestScore.Valid {
		v := bestScore.Float64
		st.BestScore = &v
		st.BestLayout = bestLayout.String
	}
	return st, nil
}

// Heartbeat upserts a node row and merges its CPU profile, keeping the max
// observed ops-per-sec (spec.md §4.5).
func (s *Store) Heartbeat(nodeId, jobId, cpuSignature string, cpuCores int, opsPerSec float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin heartbeat tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.DateTime)
	if _, err := tx.Exec(`INSERT INTO nodes (id, current_job_id, last_heartbeat_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET current_job_id = excluded.current_job_id, last_heartbeat_at = excluded.last_heartbeat_at`,
		nodeId, jobId, now); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO hardware_profiles (node_id, cpu_signature, cpu_cores, max_ops_per_sec)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			cpu_signature = excluded.cpu_signature,
			cpu_cores = excluded.cpu_cores,
			max_ops_per_sec = MAX(hardware_profiles.max_ops_per_sec, excluded.max_ops_per_sec)`,
		nodeId, cpuSignature, cpuCores, opsPerSec); err != nil {
		return fmt.Errorf("merge hardware profile: %w", err)
	}

	return tx.Commit()
}

// SubmitCommunity records a pending community submission (spec.md §4.5);
// no scoring happens on ingest.
func (s *Store) SubmitCommunity(id, name, layout, author string) error {
	_, err := s.db.Exec(`INSERT INTO submissions (id, name, layout, author, status) VALUES (?, ?, ?, ?, 'pending')`,
		id, name, layout, author)
	if err != nil {
		return fmt.Errorf("insert community submission: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ErrJobNotFound reports a get_status call against an unknown job_id.
type ErrJobNotFound struct {
	JobId string
}

func (e ErrJobNotFound) Error() string {
	return fmt.Sprintf("job %q not found", e.JobId)
}
