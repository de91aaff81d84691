package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordRow represents a row in the records table.
type RecordRow struct {
	Path       string
	Collection string
	Slug       string
	Href       string
	Title      string
	Date       string
	Draft      bool
	Checksum   string
	Tags       []string
	// Data is the record's JSON encoding.
	Data       json.RawMessage
	Generation uint64
	UpdatedAt  time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
	Slug       string `json:"slug"`
	Href       string `json:"href"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// UpsertRecord inserts or replaces a record, its FTS entry, and its
// outgoing links within a transaction.
func (db *DB) UpsertRecord(r RecordRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	data := r.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	// A page that moved to another file replaces the old row.
	if r.Href != "" {
		var moved string
		if err := tx.QueryRow(`SELECT path FROM records WHERE collection = ? AND href = ? AND path <> ?`,
			r.Collection, r.Href, r.Path).Scan(&moved); err == nil {
			deleteRows(tx, moved)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO records (path, collection, slug, href, title, date, draft, checksum, tags, body, data, generation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			collection = excluded.collection,
			slug       = excluded.slug,
			href       = excluded.href,
			title      = excluded.title,
			date       = excluded.date,
			draft      = excluded.draft,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			data       = excluded.data,
			generation = excluded.generation,
			updated_at = excluded.updated_at
	`, r.Path, r.Collection, r.Slug, r.Href, r.Title, r.Date, r.Draft, r.Checksum,
		string(tagsJSON), body, string(data), int64(r.Generation), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Path, r.Title, body, r.Tags); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, r.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(r.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteRecord removes a record, its FTS entry, and outgoing links.
func (db *DB) DeleteRecord(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	deleteRows(tx, path)
	return tx.Commit()
}

func deleteRows(tx *sql.Tx, path string) {
	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM records WHERE path = ?`, path)
}

// GetChecksum returns the stored checksum for a record, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const (
	recordColumns  = `path, collection, slug, href, title, date, draft, checksum, tags, data, generation, updated_at`
	recordColumnsR = `r.path, r.collection, r.slug, r.href, r.title, r.date, r.draft, r.checksum, r.tags, r.data, r.generation, r.updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*RecordRow, error) {
	var (
		r          RecordRow
		tags, data string
		generation int64
	)
	if err := s.Scan(&r.Path, &r.Collection, &r.Slug, &r.Href, &r.Title, &r.Date, &r.Draft,
		&r.Checksum, &tags, &data, &generation, &r.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	r.Data = json.RawMessage(data)
	r.Generation = uint64(generation)
	return &r, nil
}

// GetByHref returns the record published at href, or nil if absent.
func (db *DB) GetByHref(href string) (*RecordRow, error) {
	row := db.conn.QueryRow(`SELECT `+recordColumns+` FROM records WHERE href = ? ORDER BY path LIMIT 1`, href)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get record: %w", err)
	}
	return r, nil
}

// AllChecksums returns path → checksum for every indexed record.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the records that link to target, a site-relative
// href, ordered by path.
func (db *DB) Backlinks(target string) ([]RecordRow, error) {
	rows, err := db.conn.Query(`
		SELECT `+recordColumnsR+`
		FROM links l JOIN records r ON r.path = l.source
		WHERE l.target = ?
		ORDER BY r.path
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
