package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/hcap-portal/internal/database"
	"github.com/iliyamo/hcap-portal/internal/model"
)

// StatusRepo reads and appends participant_status and ros_status rows.
// Writes go through InTx so the supersede and insert of a transition commit
// together.
type StatusRepo struct {
	db *sql.DB
}

// NewStatusRepo returns a StatusRepo bound to db.
func NewStatusRepo(db *sql.DB) *StatusRepo { return &StatusRepo{db: db} }

// StatusTx is a StatusRepo view bound to one open transaction.
type StatusTx struct {
	tx *sql.Tx
}

// InTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise.
func (r *StatusRepo) InTx(ctx context.Context, fn func(*StatusTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(&StatusTx{tx: tx})
}

const statusColumns = `id, participant_id, employer_id, site_id, status, data, is_current, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*model.StatusRecord, error) {
	var (
		rec      model.StatusRecord
		employer sql.NullString
		site     sql.NullInt64
		data     []byte
	)
	if err := row.Scan(&rec.ID, &rec.ParticipantID, &employer, &site, &rec.Status, &data, &rec.Current, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if employer.Valid {
		e := employer.String
		rec.EmployerID = &e
	}
	if site.Valid {
		s := site.Int64
		rec.SiteID = &s
	}
	if len(data) > 0 {
		rec.Data = json.RawMessage(data)
	}
	return &rec, nil
}

const rosColumns = `id, participant_id, site_id, status, data, previous_id, created_by, is_current, created_at`

func scanROS(row rowScanner) (*model.ROSRecord, error) {
	var (
		rec  model.ROSRecord
		data []byte
		prev sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.ParticipantID, &rec.SiteID, &rec.Status, &data, &prev, &rec.CreatedBy, &rec.Current, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if prev.Valid {
		p := prev.Int64
		rec.PreviousID = &p
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("ros_status %d: decode data: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// CurrentStatus returns the participant's current status row or nil.
func (r *StatusRepo) CurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error) {
	q := `SELECT ` + statusColumns + ` FROM participant_status WHERE participant_id = ? AND is_current = 1`
	rec, err := scanStatus(r.db.QueryRowContext(ctx, q, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// StatusHistory returns every status row of the participant, oldest first.
func (r *StatusRepo) StatusHistory(ctx context.Context, participantID int64) ([]model.StatusRecord, error) {
	q := `SELECT ` + statusColumns + ` FROM participant_status WHERE participant_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StatusRecord{}
	for rows.Next() {
		rec, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CurrentROS returns the participant's current return-of-service row or nil.
func (r *StatusRepo) CurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error) {
	q := `SELECT ` + rosColumns + ` FROM ros_status WHERE participant_id = ? AND is_current = 1`
	rec, err := scanROS(r.db.QueryRowContext(ctx, q, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ROSHistory returns every return-of-service row of the participant, oldest first.
func (r *StatusRepo) ROSHistory(ctx context.Context, participantID int64) ([]model.ROSRecord, error) {
	q := `SELECT ` + rosColumns + ` FROM ros_status WHERE participant_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ROSRecord{}
	for rows.Next() {
		rec, err := scanROS(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ParticipantExists reports whether the participant row exists.  The row is
// share-locked so it cannot be deleted mid-transition.
func (t *StatusTx) ParticipantExists(ctx context.Context, participantID int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE id = ? FOR SHARE`, participantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SiteExists reports whether an employer_sites row with the surrogate id exists.
func (t *StatusTx) SiteExists(ctx context.Context, siteID int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM employer_sites WHERE id = ?`, siteID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// LockCurrentStatus reads the current status row FOR UPDATE.  Concurrent
// transitions of the same participant queue behind this lock.
func (t *StatusTx) LockCurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error) {
	q := `SELECT ` + statusColumns + ` FROM participant_status WHERE participant_id = ? AND is_current = 1 FOR UPDATE`
	rec, err := scanStatus(t.tx.QueryRowContext(ctx, q, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// SupersedeStatus clears the current flag of row id.  It returns ErrConflict
// if the row was not current.
func (t *StatusTx) SupersedeStatus(ctx context.Context, id int64) error {
	return supersede(ctx, t.tx, `UPDATE participant_status SET is_current = 0 WHERE id = ? AND is_current = 1`, id)
}

// InsertStatus appends rec and fills in its id and created_at.  A second
// current row for the participant violates uq_participant_status_current and
// is reported as ErrConflict.
func (t *StatusTx) InsertStatus(ctx context.Context, rec *model.StatusRecord) error {
	var data any
	if len(rec.Data) > 0 {
		data = []byte(rec.Data)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO participant_status (participant_id, employer_id, site_id, status, data, is_current) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ParticipantID, rec.EmployerID, rec.SiteID, rec.Status, data, rec.Current)
	if err != nil {
		if database.IsDuplicate(err) {
			return fmt.Errorf("participant %d already has a current status: %w", rec.ParticipantID, ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return t.tx.QueryRowContext(ctx, `SELECT created_at FROM participant_status WHERE id = ?`, id).Scan(&rec.CreatedAt)
}

// LockCurrentROS reads the current return-of-service row FOR UPDATE.
func (t *StatusTx) LockCurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error) {
	q := `SELECT ` + rosColumns + ` FROM ros_status WHERE participant_id = ? AND is_current = 1 FOR UPDATE`
	rec, err := scanROS(t.tx.QueryRowContext(ctx, q, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// SupersedeROS clears the current flag of row id.
func (t *StatusTx) SupersedeROS(ctx context.Context, id int64) error {
	return supersede(ctx, t.tx, `UPDATE ros_status SET is_current = 0 WHERE id = ? AND is_current = 1`, id)
}

// InsertROS appends rec and fills in its id and created_at.
func (t *StatusTx) InsertROS(ctx context.Context, rec *model.ROSRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO ros_status (participant_id, site_id, status, data, previous_id, created_by, is_current) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ParticipantID, rec.SiteID, rec.Status, data, rec.PreviousID, rec.CreatedBy, rec.Current)
	if err != nil {
		if database.IsDuplicate(err) {
			return fmt.Errorf("participant %d already has a current return of service record: %w", rec.ParticipantID, ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return t.tx.QueryRowContext(ctx, `SELECT created_at FROM ros_status WHERE id = ?`, id).Scan(&rec.CreatedAt)
}

func supersede(ctx context.Context, tx *sql.Tx, q string, id int64) error {
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("row %d is no longer current: %w", id, ErrConflict)
	}
	return nil
}
