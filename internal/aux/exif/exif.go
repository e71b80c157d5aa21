// Package exif implements the EXIF auxiliary table (spec §4.5.3): per-path
// metadata stored in a SQLite table aligned with the primary store and read
// back one path at a time; the Filter layer evaluates its numeric/categorical
// predicates in Go over the records it looks up, not through SQL queries.
// Grounded on the teacher's internal/store/sqlite_bm25.go (pure-Go
// modernc.org/sqlite driver, WAL mode, integrity-check-before-open).
package exif

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

const dbFileName = "exif_index.db"

// Record is one photo's extracted EXIF metadata. Fractional fields are
// normalized floats; GPS is signed decimal degrees; string fields are
// UTF-8 with invalid bytes replaced (spec §4.5.3).
type Record struct {
	Path     string
	Camera   string
	ISO      *float64
	FNumber  *float64
	Focal    *float64
	Exposure *float64
	Lat      *float64
	Lon      *float64
	Altitude *float64
	Heading  *float64
	Flash    string // "fired" | "no"
	WB       string // "auto" | "manual"
	Metering string // average|center|spot|multispot|pattern|partial|other
	Width    int
	Height   int
	MTime    float64
}

// Extractor is the external metadata-extraction capability.
type Extractor func(path string) (Record, error)

// Table owns the SQLite-backed EXIF column store for one index directory.
type Table struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (creating if absent) the EXIF table at dir/exif_index.db.
func Open(dir string) (*Table, error) {
	path := filepath.Join(dir, dbFileName)

	if _, err := os.Stat(path); err == nil {
		if err := checkIntegrity(path); err != nil {
			slog.Warn("exif_index_corrupted", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.Remove(path); rmErr != nil {
				return nil, photoerrors.IndexCorrupt("remove corrupt exif index", rmErr)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, photoerrors.IOError("open exif index", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, photoerrors.IOError("set wal mode", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, photoerrors.IOError("create exif schema", err)
	}
	return &Table{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS exif (
	path TEXT PRIMARY KEY,
	camera TEXT,
	iso REAL,
	fnumber REAL,
	focal REAL,
	exposure REAL,
	lat REAL,
	lon REAL,
	altitude REAL,
	heading REAL,
	flash TEXT,
	wb TEXT,
	metering TEXT,
	width INTEGER,
	height INTEGER,
	mtime REAL
);`

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Close releases the underlying database handle.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.Close()
}

// Build extracts metadata for every path via extract and upserts it into
// the table, returning the count of paths processed.
func (t *Table) Build(paths []string, extract Extractor) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return 0, photoerrors.IOError("begin exif transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO exif (path, camera, iso, fnumber, focal, exposure, lat, lon, altitude, heading, flash, wb, metering, width, height, mtime)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			camera=excluded.camera, iso=excluded.iso, fnumber=excluded.fnumber, focal=excluded.focal,
			exposure=excluded.exposure, lat=excluded.lat, lon=excluded.lon, altitude=excluded.altitude,
			heading=excluded.heading, flash=excluded.flash, wb=excluded.wb, metering=excluded.metering,
			width=excluded.width, height=excluded.height, mtime=excluded.mtime`)
	if err != nil {
		tx.Rollback()
		return 0, photoerrors.IOError("prepare exif upsert", err)
	}
	defer stmt.Close()

	updated := 0
	for _, p := range paths {
		rec, err := extract(p)
		if err != nil {
			continue // per-path extraction failure is skipped, never fatal (spec §7)
		}
		rec.Path = p
		if _, err := stmt.Exec(rec.Path, rec.Camera, rec.ISO, rec.FNumber, rec.Focal, rec.Exposure,
			rec.Lat, rec.Lon, rec.Altitude, rec.Heading, rec.Flash, rec.WB, rec.Metering,
			rec.Width, rec.Height, rec.MTime); err != nil {
			continue
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return updated, photoerrors.IOError("commit exif transaction", err)
	}
	return updated, nil
}

// Lookup returns the EXIF record for path, and whether it exists.
func (t *Table) Lookup(path string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.db.QueryRow(`SELECT path, camera, iso, fnumber, focal, exposure, lat, lon, altitude, heading, flash, wb, metering, width, height, mtime FROM exif WHERE path = ?`, path)
	var rec Record
	if err := row.Scan(&rec.Path, &rec.Camera, &rec.ISO, &rec.FNumber, &rec.Focal, &rec.Exposure,
		&rec.Lat, &rec.Lon, &rec.Altitude, &rec.Heading, &rec.Flash, &rec.WB, &rec.Metering,
		&rec.Width, &rec.Height, &rec.MTime); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Remove deletes rows whose path is not in present, keeping the table
// aligned with the primary store after a prune.
func (t *Table) Remove(present map[string]bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(`SELECT path FROM exif`)
	if err != nil {
		return photoerrors.IOError("list exif paths", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil && !present[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()

	for _, p := range stale {
		if _, err := t.db.Exec(`DELETE FROM exif WHERE path = ?`, p); err != nil {
			return photoerrors.IOError("prune exif row", err)
		}
	}
	return nil
}
