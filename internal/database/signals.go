package database

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pasis-project/pasis/internal/signal"
)

// timeLayout is how timestamps are stored; RFC3339 in UTC keeps string
// comparison equivalent to time comparison.
const timeLayout = time.RFC3339

// UpsertSignal inserts a new row for an unseen event_id, or updates only
// the mutable content fields (summary, strategic implication, key
// insights, updated_at) when the event already exists. Identity and
// source fields are never overwritten on update, so re-running the
// pipeline over an overlapping window is safe.
func (db *DB) UpsertSignal(rec signal.Record) (wasInserted bool, eventID string, err error) {
	eventID = rec.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var one int
	err = db.conn.QueryRow("SELECT 1 FROM signals WHERE event_id = ?", eventID).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		return false, eventID, err
	}

	var insights *string
	if len(rec.KeyInsights) > 0 {
		if data, merr := json.Marshal(rec.KeyInsights); merr == nil {
			s := string(data)
			insights = &s
		}
	}

	if err == sql.ErrNoRows {
		_, err = db.conn.Exec(
			`INSERT INTO signals (
				event_id, scope, category, title, raw_content, summary,
				strategic_implication, key_insights, source_url, publisher,
				published_at, scraped_at, confidence_score, data_quality_score,
				content_hash, processing_pipeline, schema_version, analyzed_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eventID, string(rec.Scope), nullStr(rec.Category), rec.Title,
			nullStr(rec.RawContent), nullStr(rec.Summary),
			nullStr(rec.StrategicImplication), insights,
			rec.Source.URL, nullStr(rec.Source.Publisher),
			timeStr(rec.Source.PublishedAt), timeStr(rec.Source.ScrapedAt),
			rec.Source.ConfidenceScore, nullFloat(rec.DataQualityScore),
			nullStr(rec.ContentHash), nullStr(rec.ProcessingPipeline),
			nullStr(rec.SchemaVersion), nullStr(rec.AnalyzedBy),
		)
		if err != nil {
			return false, eventID, err
		}
		return true, eventID, nil
	}

	// COALESCE keeps the stored value when the incoming field is empty,
	// so a raw re-observation never wipes earlier enrichment output.
	_, err = db.conn.Exec(
		`UPDATE signals SET summary = COALESCE(?, summary),
			strategic_implication = COALESCE(?, strategic_implication),
			key_insights = COALESCE(?, key_insights),
			analyzed_by = COALESCE(?, analyzed_by),
			updated_at = datetime('now')
		WHERE event_id = ?`,
		nullStr(rec.Summary), nullStr(rec.StrategicImplication),
		insights, nullStr(rec.AnalyzedBy), eventID,
	)
	if err != nil {
		return false, eventID, err
	}
	return false, eventID, nil
}

// CountByEventID returns the number of rows stored for an event ID.
func (db *DB) CountByEventID(eventID string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM signals WHERE event_id = ?", eventID).Scan(&n)
	return n, err
}

// EventIDsBySourceURL returns the stored event ID for each given URL
// that already exists in the store. Cross-run identity is keyed by the
// source URL: a re-observed article arrives with a fresh event ID, and
// this lookup lets callers adopt the stored one instead of inserting a
// second row. It also backs the pre-enrichment known-URL filter.
func (db *DB) EventIDsBySourceURL(urls []string) (map[string]string, error) {
	known := make(map[string]string)
	if len(urls) == 0 {
		return known, nil
	}

	placeholders := strings.Repeat("?,", len(urls))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	rows, err := db.conn.Query(
		"SELECT source_url, event_id FROM signals WHERE source_url IN ("+placeholders+")", args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u, id string
		if err := rows.Scan(&u, &id); err != nil {
			return nil, err
		}
		known[u] = id
	}
	return known, rows.Err()
}

// SignalsByScope returns signals published within the trailing window,
// newest first, optionally filtered by scope. This is the query surface
// the report builder and dashboard consume.
func (db *DB) SignalsByScope(scope string, daysBack, limit int) ([]Signal, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack).Format(timeLayout)
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT id, event_id, scope, category, title, raw_content, summary,
		strategic_implication, key_insights, source_url, publisher, published_at,
		scraped_at, confidence_score, data_quality_score, content_hash,
		processing_pipeline, schema_version, analyzed_by, created_at, updated_at
		FROM signals WHERE published_at >= ?`
	args := []any{cutoff}
	if scope != "" {
		query += " AND scope = ?"
		args = append(args, scope)
	}
	query += " ORDER BY published_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

// GetSignalByEventID returns a single signal, or nil when absent.
func (db *DB) GetSignalByEventID(eventID string) (*Signal, error) {
	rows, err := db.conn.Query(
		`SELECT id, event_id, scope, category, title, raw_content, summary,
		strategic_implication, key_insights, source_url, publisher, published_at,
		scraped_at, confidence_score, data_quality_score, content_hash,
		processing_pipeline, schema_version, analyzed_by, created_at, updated_at
		FROM signals WHERE event_id = ?`, eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	signals, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, nil
	}
	return &signals[0], nil
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{ByScope: make(map[string]int)}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM signals").Scan(&stats.TotalSignals); err != nil {
		return nil, err
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7).Format(timeLayout)
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM signals WHERE scraped_at >= ?", weekAgo,
	).Scan(&stats.ThisWeek); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := db.conn.QueryRow(
		"SELECT AVG(confidence_score) FROM signals WHERE confidence_score IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AvgConfidence = avg.Float64
	}

	rows, err := db.conn.Query("SELECT scope, COUNT(*) FROM signals GROUP BY scope")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var scope string
		var count int
		if err := rows.Scan(&scope, &count); err != nil {
			return nil, err
		}
		stats.ByScope[scope] = count
	}
	return stats, rows.Err()
}

// TopPublishers returns publishers ranked by signal count.
func (db *DB) TopPublishers(limit int) ([]PublisherStat, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(
		`SELECT publisher, COUNT(*), AVG(COALESCE(confidence_score, 0))
		FROM signals WHERE publisher IS NOT NULL
		GROUP BY publisher ORDER BY COUNT(*) DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PublisherStat
	for rows.Next() {
		var p PublisherStat
		if err := rows.Scan(&p.Publisher, &p.Count, &p.AvgConfidence); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSignals(rows *sql.Rows) ([]Signal, error) {
	var signals []Signal
	for rows.Next() {
		var s Signal
		var insights *string
		if err := rows.Scan(&s.ID, &s.EventID, &s.Scope, &s.Category, &s.Title,
			&s.RawContent, &s.Summary, &s.StrategicImplication, &insights,
			&s.SourceURL, &s.Publisher, &s.PublishedAt, &s.ScrapedAt,
			&s.ConfidenceScore, &s.DataQualityScore, &s.ContentHash,
			&s.ProcessingPipeline, &s.SchemaVersion, &s.AnalyzedBy,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if insights != nil && *insights != "" {
			_ = json.Unmarshal([]byte(*insights), &s.KeyInsights)
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func timeStr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}
