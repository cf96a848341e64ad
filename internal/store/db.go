// Package store is the Postgres cache of scored-ready postings.
// Embeddings live alongside each row so cached matches never need a
// round trip to the embedding provider.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/baxromumarov/job-finder/internal/source"
)

// ErrUnavailable marks total store unavailability: no cache to read
// or write. The HTTP layer turns it into a 503.
var ErrUnavailable = errors.New("store unavailable")

// wrapUnavailable tags connection-class failures with ErrUnavailable
// so a database dying mid-request maps to 503, not 500. Query-shape
// errors pass through untouched.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Ping reports current connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RunMigrations(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func clampLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// CandidateFilter narrows which cached rows scoring considers before
// any similarity math runs.
type CandidateFilter struct {
	Location   string
	RemoteOnly bool
	JobType    string
	MinSalary  int
	MaxAge     time.Duration
	Limit      int
}

// candidateWhere renders the structural filter as a WHERE clause with
// positional args. Candidates and FreshCount share it so the cache-hit
// decision counts the same rows a query would return.
func candidateWhere(f CandidateFilter) (string, []any) {
	clause := " WHERE 1=1"
	args := []any{}

	if f.MaxAge > 0 {
		clause += fmt.Sprintf(" AND cached_at >= $%d", len(args)+1)
		args = append(args, time.Now().Add(-f.MaxAge))
	}
	if f.Location != "" {
		clause += fmt.Sprintf(" AND (LOWER(location) LIKE $%d OR remote)", len(args)+1)
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.RemoteOnly {
		clause += " AND remote"
	}
	if f.JobType != "" {
		clause += fmt.Sprintf(" AND job_type = $%d", len(args)+1)
		args = append(args, f.JobType)
	}
	if f.MinSalary > 0 {
		// Rows with no salary data are kept; the filter only cuts
		// postings that are known to pay below the floor.
		clause += fmt.Sprintf(" AND (salary_max IS NULL OR salary_max >= $%d)", len(args)+1)
		args = append(args, f.MinSalary)
	}
	return clause, args
}

// Upsert writes postings keyed by their dedup key. An unchanged
// content hash keeps cached_at so the freshness window reflects when
// the content last changed, not when it was last seen. A posting with
// a zero LastVerified means validation did not run for it, and the
// stored timestamp is kept; explicit failure marking goes through
// RunRefresh's staleURLs.
func (s *Store) Upsert(ctx context.Context, postings []source.Posting, dedupKey func(source.Posting) string, refreshID int64) (int, error) {
	n := 0
	for _, p := range postings {
		key := dedupKey(p)
		if key == "" || p.ApplyURL == "" {
			continue
		}
		if err := s.upsertOne(ctx, s.db, key, p, refreshID); err != nil {
			return n, fmt.Errorf("failed to upsert posting %q: %w", key, err)
		}
		n++
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertOne(ctx context.Context, db execer, key string, p source.Posting, refreshID int64) error {
	var raw any
	if len(p.Raw) > 0 {
		raw = []byte(p.Raw)
	}

	var postedAt, lastVerified any
	if !p.PostedAt.IsZero() {
		postedAt = p.PostedAt
	}
	if !p.LastVerified.IsZero() {
		lastVerified = p.LastVerified
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO postings (
    dedup_key, source, source_uid, title, company, location, description, requirements,
    salary_min, salary_max, job_type, remote, apply_url, posted_at, embedding,
    content_hash, raw, cached_at, last_verified, refresh_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), $18, $19)
ON CONFLICT (dedup_key) DO UPDATE SET
    source = EXCLUDED.source,
    source_uid = EXCLUDED.source_uid,
    title = EXCLUDED.title,
    company = EXCLUDED.company,
    location = EXCLUDED.location,
    description = EXCLUDED.description,
    requirements = EXCLUDED.requirements,
    salary_min = EXCLUDED.salary_min,
    salary_max = EXCLUDED.salary_max,
    job_type = EXCLUDED.job_type,
    remote = EXCLUDED.remote,
    apply_url = EXCLUDED.apply_url,
    posted_at = COALESCE(EXCLUDED.posted_at, postings.posted_at),
    embedding = COALESCE(EXCLUDED.embedding, postings.embedding),
    raw = COALESCE(EXCLUDED.raw, postings.raw),
    content_hash = EXCLUDED.content_hash,
    cached_at = CASE
        WHEN postings.content_hash = EXCLUDED.content_hash THEN postings.cached_at
        ELSE NOW()
    END,
    last_verified = COALESCE(EXCLUDED.last_verified, postings.last_verified),
    refresh_id = EXCLUDED.refresh_id
`,
		key, p.Source, p.SourceUID, p.Title, p.Company, p.Location, p.Description, p.Requirements,
		p.SalaryMin, p.SalaryMax, p.JobType, p.Remote, p.ApplyURL, postedAt, embeddingParam(p.Embedding),
		p.ContentHash(), raw, lastVerified, refreshID)
	return err
}

func embeddingParam(v []float64) any {
	if len(v) == 0 {
		return nil
	}
	return pq.Float64Array(v)
}

// Candidates loads cached postings matching the structural filter,
// freshest content first. Similarity scoring happens in-process over
// the returned rows.
func (s *Store) Candidates(ctx context.Context, f CandidateFilter) ([]source.Posting, error) {
	limit := clampLimit(f.Limit, 200, 1000)

	where, args := candidateWhere(f)
	query := `
SELECT source, source_uid, title, company, location, description, requirements,
       salary_min, salary_max, job_type, remote, apply_url, posted_at, embedding,
       raw, cached_at, last_verified
FROM postings` + where
	query += fmt.Sprintf(" ORDER BY cached_at DESC, posted_at DESC NULLS LAST LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var postings []source.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func scanPosting(rows *sql.Rows) (source.Posting, error) {
	var (
		p            source.Posting
		salaryMin    sql.NullInt64
		salaryMax    sql.NullInt64
		postedAt     sql.NullTime
		lastVerified sql.NullTime
		embedding    pq.Float64Array
		raw          []byte
	)

	if err := rows.Scan(
		&p.Source,
		&p.SourceUID,
		&p.Title,
		&p.Company,
		&p.Location,
		&p.Description,
		&p.Requirements,
		&salaryMin,
		&salaryMax,
		&p.JobType,
		&p.Remote,
		&p.ApplyURL,
		&postedAt,
		&embedding,
		&raw,
		&p.CachedAt,
		&lastVerified,
	); err != nil {
		return source.Posting{}, err
	}

	if salaryMin.Valid {
		v := int(salaryMin.Int64)
		p.SalaryMin = &v
	}
	if salaryMax.Valid {
		v := int(salaryMax.Int64)
		p.SalaryMax = &v
	}
	if postedAt.Valid {
		p.PostedAt = postedAt.Time
	}
	if lastVerified.Valid {
		p.LastVerified = lastVerified.Time
	}
	if len(embedding) > 0 {
		p.Embedding = []float64(embedding)
	}
	if len(raw) > 0 {
		p.Raw = json.RawMessage(raw)
	}
	return p, nil
}

// FreshCount reports how many cached rows satisfy the filter. The
// orchestrator uses it with a short MaxAge to decide between serving
// cache and going live; counting without the structural filter would
// let fresh rows for other locations mask a stale slice.
func (s *Store) FreshCount(ctx context.Context, f CandidateFilter) (int, error) {
	where, args := candidateWhere(f)

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postings"+where, args...).Scan(&n)
	return n, wrapUnavailable(err)
}

// RefreshResult summarizes one cache refresh cycle.
type RefreshResult struct {
	ID       int64
	Fetched  int
	Upserted int
	Pruned   int64
}

// RunRefresh replaces the cache contents in a single transaction:
// every fetched posting is upserted under a fresh refresh id, rows
// whose apply URL failed validation get last_verified cleared, then
// rows neither touched by this refresh nor still inside the TTL are
// pruned. Readers see either the old cache or the new one, never a
// half-written mix.
//
// staleURLs is the explicit "validation failed" signal. The upsert
// itself cannot carry it: a zero LastVerified on a posting means
// validation did not run, and COALESCE keeps the old timestamp.
func (s *Store) RunRefresh(ctx context.Context, postings []source.Posting, dedupKey func(source.Posting) string, ttl time.Duration, staleURLs []string) (RefreshResult, error) {
	var res RefreshResult
	res.Fetched = len(postings)

	if err := s.db.QueryRowContext(ctx, `
INSERT INTO refreshes (started_at) VALUES (NOW()) RETURNING id
`).Scan(&res.ID); err != nil {
		return res, fmt.Errorf("failed to record refresh: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin refresh tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range postings {
		key := dedupKey(p)
		if key == "" || p.ApplyURL == "" {
			continue
		}
		if err := s.upsertOne(ctx, tx, key, p, res.ID); err != nil {
			return res, fmt.Errorf("failed to upsert posting %q: %w", key, err)
		}
		res.Upserted++
	}

	if len(staleURLs) > 0 {
		if _, err := tx.ExecContext(ctx, `
UPDATE postings SET last_verified = NULL WHERE apply_url = ANY($1)
`, pq.Array(staleURLs)); err != nil {
			return res, fmt.Errorf("failed to mark stale postings: %w", err)
		}
	}

	pruned, err := tx.ExecContext(ctx, `
DELETE FROM postings
WHERE refresh_id <> $1 AND cached_at < $2
`, res.ID, time.Now().Add(-ttl))
	if err != nil {
		return res, fmt.Errorf("failed to prune stale postings: %w", err)
	}
	res.Pruned, _ = pruned.RowsAffected()

	if _, err := tx.ExecContext(ctx, `
UPDATE refreshes
SET finished_at = NOW(), fetched = $2, upserted = $3, pruned = $4
WHERE id = $1
`, res.ID, res.Fetched, res.Upserted, res.Pruned); err != nil {
		return res, fmt.Errorf("failed to finalize refresh: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit refresh: %w", err)
	}
	return res, nil
}

// MarkVerified stamps last_verified on the rows behind the given
// apply URLs. The live path calls it after validating its top-ranked
// results so the cache remembers which links were just confirmed.
func (s *Store) MarkVerified(ctx context.Context, urls []string, at time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE postings SET last_verified = $2 WHERE apply_url = ANY($1)
`, pq.Array(urls), at)
	return wrapUnavailable(err)
}

// MarkRefreshFailed records the error outside any transaction so the
// failure survives the rollback.
func (s *Store) MarkRefreshFailed(ctx context.Context, id int64, refreshErr error) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE refreshes SET finished_at = NOW(), error = $2 WHERE id = $1
`, id, refreshErr.Error())
	return err
}

// CacheStats is the storage slice of the /stats payload.
type CacheStats struct {
	TotalPostings int            `json:"total_postings"`
	FreshPostings int            `json:"fresh_postings"`
	BySource      map[string]int `json:"by_source"`
	OldestCached  *time.Time     `json:"oldest_cached,omitempty"`
	NewestCached  *time.Time     `json:"newest_cached,omitempty"`
	LastRefresh   *time.Time     `json:"last_refresh,omitempty"`
}

func (s *Store) Stats(ctx context.Context, freshness time.Duration) (CacheStats, error) {
	var (
		st     CacheStats
		oldest sql.NullTime
		newest sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE cached_at >= $1),
       MIN(cached_at),
       MAX(cached_at)
FROM postings
`, time.Now().Add(-freshness)).Scan(&st.TotalPostings, &st.FreshPostings, &oldest, &newest)
	if err != nil {
		return st, wrapUnavailable(err)
	}

	st.BySource = map[string]int{}
	rows, err := s.db.QueryContext(ctx, `
SELECT source, COUNT(*) FROM postings GROUP BY source
`)
	if err != nil {
		return st, wrapUnavailable(err)
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return st, err
		}
		st.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if oldest.Valid {
		st.OldestCached = &oldest.Time
	}
	if newest.Valid {
		st.NewestCached = &newest.Time
	}

	var lastRefresh sql.NullTime
	err = s.db.QueryRowContext(ctx, `
SELECT MAX(finished_at) FROM refreshes WHERE error = ''
`).Scan(&lastRefresh)
	if err != nil {
		return st, err
	}
	if lastRefresh.Valid {
		st.LastRefresh = &lastRefresh.Time
	}
	return st, nil
}
