package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chenBenjamin97/shot-tracker/pkg/shot"
	"github.com/chenBenjamin97/shot-tracker/pkg/utils"
)

//Video is one uploaded (or live) video and the summary of its processing
type Video struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	FilePath        string     `json:"file_path"`
	Status          string     `json:"status"`
	TotalFrames     int        `json:"total_frames"`
	FPS             float64    `json:"fps"`
	DurationSeconds float64    `json:"duration_seconds"`
	ShotsDetected   int        `json:"shots_detected"`
	ShotsRejected   int        `json:"shots_rejected"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

//VideoSummary is written once processing of a video is done
type VideoSummary struct {
	TotalFrames     int
	FPS             float64
	DurationSeconds float64
	ShotsDetected   int
	ShotsRejected   int
}

//StoredShot is a persisted shot record and the video it was found in
type StoredShot struct {
	shot.Record
	VideoID   string    `json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
}

//Records strips the storage fields
func Records(shots []StoredShot) []shot.Record {
	out := make([]shot.Record, len(shots))
	for i := range shots {
		out[i] = shots[i].Record
	}
	return out
}

const timeLayout = time.RFC3339Nano

var now = func() time.Time { return time.Now().UTC() }

//CreateVideo registers a new video in the uploaded state
func (db *DB) CreateVideo(ctx context.Context, filename, filePath string) (Video, error) {
	v := Video{
		ID:        uuid.New().String(),
		Filename:  filename,
		FilePath:  filePath,
		Status:    utils.VideoStatusUploaded,
		CreatedAt: now(),
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO videos (id, filename, file_path, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Filename, v.FilePath, v.Status, v.CreatedAt.Format(timeLayout))
	if err != nil {
		return Video{}, fmt.Errorf("insert video: %w", err)
	}
	return v, nil
}

//SetVideoStatus moves a video to status. errMsg is stored as is, empty clears it.
func (db *DB) SetVideoStatus(ctx context.Context, id, status, errMsg string) error {
	res, err := db.ExecContext(ctx, `UPDATE videos SET status = ?, error = ? WHERE id = ?`, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update video %s: %w", id, err)
	}
	return expectRow(res, id)
}

//CompleteVideo stores the shots found in a video together with its processing summary and marks it done.
//Either everything is written or nothing is.
func (db *DB) CompleteVideo(ctx context.Context, id string, s VideoSummary, records []shot.Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("complete video %s: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE videos
		SET status = ?, total_frames = ?, fps = ?, duration_seconds = ?, shots_detected = ?, shots_rejected = ?,
			error = '', processed_at = ?
		WHERE id = ?`,
		utils.VideoStatusDone, s.TotalFrames, s.FPS, s.DurationSeconds, s.ShotsDetected, s.ShotsRejected,
		now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("complete video %s: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}

	for _, rec := range records {
		if err := insertShot(ctx, tx, id, rec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

//FinishVideo records the end of a processing job. With a nil jobErr the records and summary are committed like
//CompleteVideo does. Otherwise, or when that commit fails, the video is marked failed with the error text.
//The final status is written even when ctx is already cancelled.
func (db *DB) FinishVideo(ctx context.Context, id string, s VideoSummary, records []shot.Record, jobErr error) error {
	ctx = context.WithoutCancel(ctx)

	err := jobErr
	if err == nil {
		if err = db.CompleteVideo(ctx, id, s, records); err == nil {
			return nil
		}
	}

	if serr := db.SetVideoStatus(ctx, id, utils.VideoStatusFailed, err.Error()); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

const videoColumns = `id, filename, file_path, status, total_frames, fps, duration_seconds, shots_detected,
	shots_rejected, error, created_at, processed_at`

//GetVideo returns the video with the given id or ErrNotFound
func (db *DB) GetVideo(ctx context.Context, id string) (Video, error) {
	row := db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return v, err
}

//ListVideos returns every video, newest first
func (db *DB) ListVideos(ctx context.Context) ([]Video, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

//InsertShot persists a finalized shot. Shots are never updated afterwards.
func (db *DB) InsertShot(ctx context.Context, videoID string, rec shot.Record) error {
	return insertShot(ctx, db.DB, videoID, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertShot(ctx context.Context, db execer, videoID string, rec shot.Record) error {
	var form sql.NullString
	if rec.Form != nil {
		b, err := json.Marshal(rec.Form)
		if err != nil {
			return fmt.Errorf("encode form metrics: %w", err)
		}
		form = sql.NullString{String: string(b), Valid: true}
	}

	ball := shot.BallTracking{Result: shot.ResultUnknown}
	if rec.Ball != nil {
		ball = *rec.Ball
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO shots (id, video_id, start_ts, release_ts, end_ts, duration, form_metrics, result, confidence,
			trajectory_length, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), videoID, rec.Window.StartTs, rec.Window.ReleaseTs, rec.Window.EndTs, rec.Window.Duration,
		form, string(ball.Result), ball.Confidence, ball.TrajectoryLength, ball.Analysis, now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert shot %s: %w", rec.ID, err)
	}
	return nil
}

const shotColumns = `id, video_id, start_ts, release_ts, end_ts, duration, form_metrics, result, confidence,
	trajectory_length, analysis, created_at`

//ListShotsByVideo returns the shots of a video in release order
func (db *DB) ListShotsByVideo(ctx context.Context, videoID string) ([]StoredShot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+shotColumns+` FROM shots WHERE video_id = ? ORDER BY release_ts, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list shots of %s: %w", videoID, err)
	}
	defer rows.Close()

	shots := []StoredShot{}
	for rows.Next() {
		s, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, s)
	}
	return shots, rows.Err()
}

//GetShot returns the shot with the given id or ErrNotFound
func (db *DB) GetShot(ctx context.Context, id uuid.UUID) (StoredShot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+shotColumns+` FROM shots WHERE id = ?`, id.String())
	s, err := scanShot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredShot{}, fmt.Errorf("shot %s: %w", id, ErrNotFound)
	}
	return s, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row scanner) (Video, error) {
	var (
		v         Video
		created   string
		processed sql.NullString
	)
	err := row.Scan(&v.ID, &v.Filename, &v.FilePath, &v.Status, &v.TotalFrames, &v.FPS, &v.DurationSeconds,
		&v.ShotsDetected, &v.ShotsRejected, &v.Error, &created, &processed)
	if err != nil {
		return Video{}, err
	}

	if v.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Video{}, fmt.Errorf("video %s created_at: %w", v.ID, err)
	}
	if processed.Valid {
		t, err := time.Parse(timeLayout, processed.String)
		if err != nil {
			return Video{}, fmt.Errorf("video %s processed_at: %w", v.ID, err)
		}
		v.ProcessedAt = &t
	}
	return v, nil
}

func scanShot(row scanner) (StoredShot, error) {
	var (
		s       StoredShot
		id      string
		form    sql.NullString
		result  string
		created string
		ball    shot.BallTracking
	)
	err := row.Scan(&id, &s.VideoID, &s.Window.StartTs, &s.Window.ReleaseTs, &s.Window.EndTs, &s.Window.Duration,
		&form, &result, &ball.Confidence, &ball.TrajectoryLength, &ball.Analysis, &created)
	if err != nil {
		return StoredShot{}, err
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return StoredShot{}, fmt.Errorf("shot id %q: %w", id, err)
	}
	if form.Valid {
		s.Form = &shot.FormMetrics{}
		if err := json.Unmarshal([]byte(form.String), s.Form); err != nil {
			return StoredShot{}, fmt.Errorf("shot %s form metrics: %w", id, err)
		}
	}
	ball.Result = shot.Result(result)
	s.Ball = &ball

	if s.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return StoredShot{}, fmt.Errorf("shot %s created_at: %w", id, err)
	}
	return s, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}
