package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/hcap-portal/internal/database"
	"github.com/iliyamo/hcap-portal/internal/model"
)

// CohortRepo manages post-secondary institutes, their cohorts and cohort
// assignments.
type CohortRepo struct {
	db *sql.DB
}

func NewCohortRepo(db *sql.DB) *CohortRepo { return &CohortRepo{db: db} }

// ListInstitutes returns the institutes in regions (nil for all).
func (r *CohortRepo) ListInstitutes(ctx context.Context, regions []string) ([]model.PostSecondaryInstitute, error) {
	scope, args := regionFilter("health_authority", regions, false)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, institute_name, health_authority, postal_code, available_seats, created_at
		 FROM post_secondary_institutions WHERE 1 = 1`+scope+` ORDER BY institute_name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PostSecondaryInstitute{}
	for rows.Next() {
		var p model.PostSecondaryInstitute
		if err := rows.Scan(&p.ID, &p.InstituteName, &p.HealthAuthority, &p.PostalCode, &p.AvailableSeats, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateInstitute inserts p.  A duplicate name returns ErrConflict.
func (r *CohortRepo) CreateInstitute(ctx context.Context, p *model.PostSecondaryInstitute) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO post_secondary_institutions (institute_name, health_authority, postal_code, available_seats) VALUES (?, ?, ?, ?)`,
		p.InstituteName, p.HealthAuthority, p.PostalCode, p.AvailableSeats)
	if err != nil {
		if database.IsDuplicate(err) {
			return fmt.Errorf("institute %q: %w", p.InstituteName, ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM post_secondary_institutions WHERE id = ?`, id).Scan(&p.CreatedAt)
}

// ListCohorts returns the cohorts of institute psiID with their assigned
// counts, or ErrNotFound for an unknown institute.
func (r *CohortRepo) ListCohorts(ctx context.Context, psiID int64) ([]model.Cohort, error) {
	if err := r.instituteExists(ctx, psiID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.psi_id, c.cohort_name, DATE_FORMAT(c.start_date, '%Y-%m-%d'), DATE_FORMAT(c.end_date, '%Y-%m-%d'),
		        c.cohort_size, COUNT(cp.participant_id), c.created_at
		 FROM cohorts c
		 LEFT JOIN cohort_participants cp ON cp.cohort_id = c.id
		 WHERE c.psi_id = ?
		 GROUP BY c.id
		 ORDER BY c.start_date, c.id`, psiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Cohort{}
	for rows.Next() {
		var c model.Cohort
		if err := rows.Scan(&c.ID, &c.PSIID, &c.CohortName, &c.StartDate, &c.EndDate, &c.CohortSize, &c.Assigned, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCohort inserts c under its institute.
func (r *CohortRepo) CreateCohort(ctx context.Context, c *model.Cohort) error {
	if err := r.instituteExists(ctx, c.PSIID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cohorts (psi_id, cohort_name, start_date, end_date, cohort_size) VALUES (?, ?, ?, ?, ?)`,
		c.PSIID, c.CohortName, c.StartDate, c.EndDate, c.CohortSize)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM cohorts WHERE id = ?`, id).Scan(&c.CreatedAt)
}

// AssignParticipant places a participant in a cohort, replacing any earlier
// assignment.  A full cohort returns ErrConflict.
func (r *CohortRepo) AssignParticipant(ctx context.Context, cohortID, participantID int64, assignedBy string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	var size, assigned int
	err = tx.QueryRowContext(ctx, `SELECT cohort_size FROM cohorts WHERE id = ? FOR UPDATE`, cohortID).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cohort %d: %w", cohortID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE id = ?`, participantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("participant %d: %w", participantID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cohort_participants WHERE cohort_id = ? AND participant_id <> ?`, cohortID, participantID).Scan(&assigned); err != nil {
		return err
	}
	if !cohortHasRoom(size, assigned) {
		return fmt.Errorf("cohort %d is full: %w", cohortID, ErrConflict)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cohort_participants (participant_id, cohort_id, assigned_by) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE cohort_id = VALUES(cohort_id), assigned_by = VALUES(assigned_by)`,
		participantID, cohortID, assignedBy)
	return err
}

// cohortHasRoom reports whether a cohort of size with assigned other members
// can take one more.  A size of zero means unlimited.
func cohortHasRoom(size, assigned int) bool {
	return size <= 0 || assigned < size
}

func (r *CohortRepo) instituteExists(ctx context.Context, psiID int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM post_secondary_institutions WHERE id = ?`, psiID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("institute %d: %w", psiID, ErrNotFound)
	}
	return err
}
