package calib

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/camerad/internal/monitoring"
)

// Store persists calibration records so a camera resumes with its last
// known calibration after a restart, and keeps an append-only history of
// applied records for operator debugging.
type Store struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the calibration database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS calibrations (
			camera_name       TEXT PRIMARY KEY,
			frame_id          TEXT,
			stamp             TIMESTAMP,
			height            INTEGER,
			width             INTEGER,
			binning_x         INTEGER,
			binning_y         INTEGER,
			roi_offset_x      INTEGER,
			roi_offset_y      INTEGER,
			roi_height        INTEGER,
			roi_width         INTEGER,
			rectify_valid     BOOLEAN,
			distortion_model  TEXT,
			d                 TEXT,
			k                 TEXT,
			r                 TEXT,
			p                 TEXT,
			source_url        TEXT,
			updated_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS calibration_history (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			camera_name       TEXT,
			source_url        TEXT,
			height            INTEGER,
			width             INTEGER,
			rectify_valid     BOOLEAN,
			recorded_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_calibration_history_name
			ON calibration_history (camera_name, recorded_at);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, path: path}, nil
}

// Save upserts the record keyed by camera name and appends a history row.
// sourceURL records where the intrinsics came from; empty means the record
// is mirrored geometry only.
func (s *Store) Save(rec Record, sourceURL string) error {
	d, err := json.Marshal(rec.D)
	if err != nil {
		return fmt.Errorf("encode distortion: %w", err)
	}
	k, err := json.Marshal(rec.K)
	if err != nil {
		return fmt.Errorf("encode camera matrix: %w", err)
	}
	r, err := json.Marshal(rec.R)
	if err != nil {
		return fmt.Errorf("encode rectification matrix: %w", err)
	}
	p, err := json.Marshal(rec.P)
	if err != nil {
		return fmt.Errorf("encode projection matrix: %w", err)
	}

	_, err = s.Exec(`
		INSERT INTO calibrations (
			camera_name, frame_id, stamp, height, width, binning_x, binning_y,
			roi_offset_x, roi_offset_y, roi_height, roi_width, rectify_valid,
			distortion_model, d, k, r, p, source_url, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(camera_name) DO UPDATE SET
			frame_id = excluded.frame_id,
			stamp = excluded.stamp,
			height = excluded.height,
			width = excluded.width,
			binning_x = excluded.binning_x,
			binning_y = excluded.binning_y,
			roi_offset_x = excluded.roi_offset_x,
			roi_offset_y = excluded.roi_offset_y,
			roi_height = excluded.roi_height,
			roi_width = excluded.roi_width,
			rectify_valid = excluded.rectify_valid,
			distortion_model = excluded.distortion_model,
			d = excluded.d,
			k = excluded.k,
			r = excluded.r,
			p = excluded.p,
			source_url = excluded.source_url,
			updated_at = CURRENT_TIMESTAMP`,
		rec.Name, rec.FrameID, rec.Stamp, rec.Height, rec.Width,
		rec.BinningX, rec.BinningY,
		rec.ROI.OffsetX, rec.ROI.OffsetY, rec.ROI.Height, rec.ROI.Width,
		rec.ROI.RectifyValid, rec.DistortionModel,
		string(d), string(k), string(r), string(p), sourceURL,
	)
	if err != nil {
		return err
	}

	_, err = s.Exec(`
		INSERT INTO calibration_history (camera_name, source_url, height, width, rectify_valid)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Name, sourceURL, rec.Height, rec.Width, rec.ROI.RectifyValid,
	)
	return err
}

// Load returns the stored record for the camera name. ok is false when the
// camera has never been saved.
func (s *Store) Load(name string) (Record, bool, error) {
	var (
		rec        Record
		d, k, r, p string
		sourceURL  sql.NullString
	)
	err := s.QueryRow(`
		SELECT camera_name, frame_id, stamp, height, width, binning_x, binning_y,
			roi_offset_x, roi_offset_y, roi_height, roi_width, rectify_valid,
			distortion_model, d, k, r, p, source_url
		FROM calibrations WHERE camera_name = ?`, name,
	).Scan(
		&rec.Name, &rec.FrameID, &rec.Stamp, &rec.Height, &rec.Width,
		&rec.BinningX, &rec.BinningY,
		&rec.ROI.OffsetX, &rec.ROI.OffsetY, &rec.ROI.Height, &rec.ROI.Width,
		&rec.ROI.RectifyValid, &rec.DistortionModel,
		&d, &k, &r, &p, &sourceURL,
	)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	if err := json.Unmarshal([]byte(d), &rec.D); err != nil {
		return Record{}, false, fmt.Errorf("decode distortion: %w", err)
	}
	if err := json.Unmarshal([]byte(k), &rec.K); err != nil {
		return Record{}, false, fmt.Errorf("decode camera matrix: %w", err)
	}
	if err := json.Unmarshal([]byte(r), &rec.R); err != nil {
		return Record{}, false, fmt.Errorf("decode rectification matrix: %w", err)
	}
	if err := json.Unmarshal([]byte(p), &rec.P); err != nil {
		return Record{}, false, fmt.Errorf("decode projection matrix: %w", err)
	}
	return rec, true, nil
}

// SourceURL returns the source recorded with the camera's stored record.
func (s *Store) SourceURL(name string) (string, error) {
	var u sql.NullString
	err := s.QueryRow(`SELECT source_url FROM calibrations WHERE camera_name = ?`, name).Scan(&u)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.String, nil
}

// HistoryEntry is one applied-calibration event.
type HistoryEntry struct {
	CameraName   string    `json:"camera_name"`
	SourceURL    string    `json:"source_url"`
	Height       int       `json:"height"`
	Width        int       `json:"width"`
	RectifyValid bool      `json:"rectify_valid"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// History returns the camera's most recent applied-calibration events,
// newest first.
func (s *Store) History(name string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT camera_name, source_url, height, width, rectify_valid, recorded_at
		FROM calibration_history
		WHERE camera_name = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e         HistoryEntry
			sourceURL sql.NullString
		)
		if err := rows.Scan(&e.CameraName, &sourceURL, &e.Height, &e.Width,
			&e.RectifyValid, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.SourceURL = sourceURL.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// AttachAdminRoutes mounts live SQL debugging and a backup download under
// /debug/. These routes are reachable only over localhost/Tailscale.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("[calib] failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://"+s.path, s.DB, &tailsql.DBOptions{
		Label: "Calibration DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the calibration database", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("calib-backup-%d.db", unixTime)
		if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("[calib] failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
