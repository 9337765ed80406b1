package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"DHTSpectra/internal/model"
)

// SQLiteStore is the durable metric store: one database file with a table per
// record kind, each indexed by timestamp. Appends come from the scheduler
// goroutine only; WAL mode keeps concurrent reads safe while a write is in
// flight. It implements model.Store.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	maxRows int64
}

// Open opens (and if necessary creates) the store at path. maxRows caps each
// table's row count, enforced at append time; 0 disables the cap.
func Open(path string, maxRows int64) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrapErr(model.StoreOpWrite, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrapErr(model.StoreOpWrite, err)
	}

	s := &SQLiteStore{db: db, path: path, maxRows: maxRows}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           INTEGER NOT NULL,
			cpu_pct      REAL NOT NULL,
			mem_pct      REAL NOT NULL,
			disk_pct     REAL NOT NULL,
			mem_used_mb  REAL NOT NULL,
			mem_total_mb REAL NOT NULL,
			disk_used_gb REAL NOT NULL,
			disk_free_gb REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS windows (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            INTEGER NOT NULL,
			duration_sec  INTEGER NOT NULL,
			unique_peers  INTEGER NOT NULL,
			total_bytes   INTEGER NOT NULL,
			total_packets INTEGER NOT NULL,
			in_bytes      INTEGER NOT NULL,
			out_bytes     INTEGER NOT NULL,
			in_packets    INTEGER NOT NULL,
			out_packets   INTEGER NOT NULL,
			new_peers     INTEGER NOT NULL,
			expired_peers INTEGER NOT NULL,
			top_peers     TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_windows_ts ON windows(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return wrapErr(model.StoreOpWrite, fmt.Errorf("migrate failed: %w", err))
		}
	}
	return nil
}

// wrapErr classifies a driver error into the store error taxonomy. Database
// corruption is distinguished so the caller can treat it as fatal.
func wrapErr(op model.StoreErrorOp, err error) *model.StoreError {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return &model.StoreError{Op: model.StoreOpCorrupt, Err: err}
		}
	}
	return &model.StoreError{Op: op, Err: err}
}

// Append persists one record and enforces the row cap. The transaction makes
// the append atomic at record granularity: readers see the whole record or
// nothing.
func (s *SQLiteStore) Append(rec *model.StoredRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrapErr(model.StoreOpWrite, err)
	}
	defer tx.Rollback()

	var table string
	switch rec.Kind {
	case model.KindSample:
		table = "samples"
		sm := rec.Sample
		_, err = tx.Exec(`INSERT INTO samples
			(ts, cpu_pct, mem_pct, disk_pct, mem_used_mb, mem_total_mb, disk_used_gb, disk_free_gb)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sm.Timestamp.UnixNano(), sm.CPUPercent, sm.MemPercent, sm.DiskPercent,
			sm.MemUsedMB, sm.MemTotalMB, sm.DiskUsedGB, sm.DiskFreeGB)
	case model.KindWindow:
		table = "windows"
		w := rec.Window
		var talkers []byte
		talkers, err = json.Marshal(w.TopTalkers)
		if err != nil {
			return wrapErr(model.StoreOpWrite, err)
		}
		_, err = tx.Exec(`INSERT INTO windows
			(ts, duration_sec, unique_peers, total_bytes, total_packets,
			 in_bytes, out_bytes, in_packets, out_packets, new_peers, expired_peers, top_peers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.Timestamp.UnixNano(), w.DurationSec, w.UniquePeers, w.TotalBytes, w.TotalPackets,
			w.InBytes, w.OutBytes, w.InPackets, w.OutPackets, w.NewPeers, w.ExpiredPeers, string(talkers))
	default:
		return &model.StoreError{Op: model.StoreOpWrite, Err: fmt.Errorf("unknown record kind %q", rec.Kind)}
	}
	if err != nil {
		return wrapErr(model.StoreOpWrite, err)
	}

	if err := s.enforceRowCap(tx, table); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(model.StoreOpWrite, err)
	}
	return nil
}

// enforceRowCap trims the oldest rows beyond maxRows inside the append
// transaction.
func (s *SQLiteStore) enforceRowCap(tx *sql.Tx, table string) error {
	if s.maxRows <= 0 {
		return nil
	}
	var count int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		return wrapErr(model.StoreOpWrite, err)
	}
	if count <= s.maxRows {
		return nil
	}
	_, err := tx.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE id IN (SELECT id FROM %s ORDER BY id ASC LIMIT ?)`, table, table),
		count-s.maxRows)
	if err != nil {
		return wrapErr(model.StoreOpWrite, err)
	}
	return nil
}

// QueryRange returns records of one kind with timestamps in [from, to],
// ordered by timestamp ascending.
func (s *SQLiteStore) QueryRange(kind model.RecordKind, from, to time.Time) ([]model.StoredRecord, error) {
	switch kind {
	case model.KindSample:
		return s.querySamples("WHERE ts >= ? AND ts <= ? ORDER BY ts ASC", from.UnixNano(), to.UnixNano())
	case model.KindWindow:
		return s.queryWindows("WHERE ts >= ? AND ts <= ? ORDER BY ts ASC", from.UnixNano(), to.UnixNano())
	default:
		return nil, &model.StoreError{Op: model.StoreOpRead, Err: fmt.Errorf("unknown record kind %q", kind)}
	}
}

func (s *SQLiteStore) querySamples(clause string, args ...any) ([]model.StoredRecord, error) {
	rows, err := s.db.Query(`SELECT id, ts, cpu_pct, mem_pct, disk_pct,
		mem_used_mb, mem_total_mb, disk_used_gb, disk_free_gb FROM samples `+clause, args...)
	if err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}
	defer rows.Close()

	var records []model.StoredRecord
	for rows.Next() {
		var (
			rec model.StoredRecord
			ts  int64
			sm  model.Sample
		)
		if err := rows.Scan(&rec.ID, &ts, &sm.CPUPercent, &sm.MemPercent, &sm.DiskPercent,
			&sm.MemUsedMB, &sm.MemTotalMB, &sm.DiskUsedGB, &sm.DiskFreeGB); err != nil {
			return nil, wrapErr(model.StoreOpRead, err)
		}
		sm.Timestamp = time.Unix(0, ts).UTC()
		rec.Kind = model.KindSample
		rec.Time = sm.Timestamp
		rec.Sample = &sm
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}
	return records, nil
}

func (s *SQLiteStore) queryWindows(clause string, args ...any) ([]model.StoredRecord, error) {
	rows, err := s.db.Query(`SELECT id, ts, duration_sec, unique_peers, total_bytes, total_packets,
		in_bytes, out_bytes, in_packets, out_packets, new_peers, expired_peers, top_peers
		FROM windows `+clause, args...)
	if err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}
	defer rows.Close()

	var records []model.StoredRecord
	for rows.Next() {
		var (
			rec     model.StoredRecord
			ts      int64
			w       model.TrafficWindow
			talkers string
		)
		if err := rows.Scan(&rec.ID, &ts, &w.DurationSec, &w.UniquePeers, &w.TotalBytes, &w.TotalPackets,
			&w.InBytes, &w.OutBytes, &w.InPackets, &w.OutPackets, &w.NewPeers, &w.ExpiredPeers, &talkers); err != nil {
			return nil, wrapErr(model.StoreOpRead, err)
		}
		if err := json.Unmarshal([]byte(talkers), &w.TopTalkers); err != nil {
			return nil, wrapErr(model.StoreOpRead, fmt.Errorf("decoding top_peers: %w", err))
		}
		w.Timestamp = time.Unix(0, ts).UTC()
		rec.Kind = model.KindWindow
		rec.Time = w.Timestamp
		rec.Window = &w
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}
	return records, nil
}

// RecentSamples returns the newest n samples in ascending timestamp order.
func (s *SQLiteStore) RecentSamples(n int) ([]model.Sample, error) {
	records, err := s.querySamples("ORDER BY ts DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	samples := make([]model.Sample, len(records))
	for i, rec := range records {
		samples[len(records)-1-i] = *rec.Sample
	}
	return samples, nil
}

// RecentWindows returns the newest n windows in ascending timestamp order.
func (s *SQLiteStore) RecentWindows(n int) ([]model.TrafficWindow, error) {
	records, err := s.queryWindows("ORDER BY ts DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	windows := make([]model.TrafficWindow, len(records))
	for i, rec := range records {
		windows[len(records)-1-i] = *rec.Window
	}
	return windows, nil
}

// SummaryStats reports record counts, timestamp bounds and on-disk size. The
// per-kind latest timestamps make a stalled capture visible even while
// samples keep flowing.
func (s *SQLiteStore) SummaryStats() (*model.SummaryStats, error) {
	stats := &model.SummaryStats{}

	var sampleMin, sampleMax, windowMin, windowMax sql.NullInt64
	if err := s.db.QueryRow("SELECT COUNT(*), MIN(ts), MAX(ts) FROM samples").
		Scan(&stats.SampleCount, &sampleMin, &sampleMax); err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*), MIN(ts), MAX(ts) FROM windows").
		Scan(&stats.WindowCount, &windowMin, &windowMax); err != nil {
		return nil, wrapErr(model.StoreOpRead, err)
	}

	stats.LatestSampleTS = nullTime(sampleMax)
	stats.LatestWindowTS = nullTime(windowMax)
	stats.EarliestTS = minTime(nullTime(sampleMin), nullTime(windowMin))
	stats.LatestTS = maxTime(stats.LatestSampleTS, stats.LatestWindowTS)

	if fi, err := os.Stat(s.path); err == nil {
		stats.StorageBytes = fi.Size()
	}
	if fi, err := os.Stat(s.path + "-wal"); err == nil {
		stats.StorageBytes += fi.Size()
	}
	return stats, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func minTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}

func maxTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.After(*b):
		return a
	default:
		return b
	}
}

// Prune deletes records of both kinds with timestamps strictly before the
// cutoff. Results already materialized by readers are unaffected.
func (s *SQLiteStore) Prune(olderThan time.Time) (int64, error) {
	var removed int64
	for _, table := range []string{"samples", "windows"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE ts < ?", olderThan.UnixNano())
		if err != nil {
			return removed, wrapErr(model.StoreOpWrite, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}
	return removed, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
