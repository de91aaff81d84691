package index

import (
	"encoding/json"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/kiln/internal/models"
)

// SyncStats reports what one Sync changed.
type SyncStats struct {
	Upserted  int
	Unchanged int
	Deleted   int
}

var textPolicy = bluemonday.StrictPolicy()

// Sync brings the index up to date with the records of one generation:
//   - new/changed records (by source checksum) are upserted
//   - records no longer present are deleted
func Sync(db *DB, generation uint64, records []*models.Record, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	live := make(map[string]struct{}, len(records))
	for _, r := range records {
		live[r.Path] = struct{}{}
		if cs, ok := checksums[r.Path]; ok && cs == r.Checksum {
			stats.Unchanged++
			continue
		}
		if err := indexRecord(db, generation, r); err != nil {
			logger.Warn("sync: index failed", slog.String("path", r.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
		logger.Debug("sync: indexed", slog.String("path", r.Path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := live[p]; ok {
			continue
		}
		if err := db.DeleteRecord(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: index updated",
		slog.Uint64("generation", generation),
		slog.Int("upserted", stats.Upserted),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("deleted", stats.Deleted))
	return stats, nil
}

// indexRecord encodes r and upserts it into the DB.
func indexRecord(db *DB, generation uint64, r *models.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	row := RecordRow{
		Path:       r.Path,
		Collection: r.Collection,
		Slug:       r.Slug,
		Href:       r.Href,
		Title:      r.Title,
		Date:       r.Date,
		Draft:      r.Draft,
		Checksum:   r.Checksum,
		Tags:       r.Tags,
		Data:       data,
		Generation: generation,
		UpdatedAt:  time.Now().UTC(),
	}
	return db.UpsertRecord(row, SearchText(r), r.Links)
}

// SearchText returns the plain text indexed for r: its rendered content
// without markup, plus the source code of script records.
func SearchText(r *models.Record) string {
	text := html.UnescapeString(textPolicy.Sanitize(r.Content))
	if code := r.FieldString("code"); code != "" {
		text += "\n" + code
	}
	return strings.Join(strings.Fields(text), " ")
}
