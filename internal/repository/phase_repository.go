package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/hcap-portal/internal/model"
)

// PhaseRepo manages phases and per-site allocations.
type PhaseRepo struct {
	db *sql.DB
}

func NewPhaseRepo(db *sql.DB) *PhaseRepo { return &PhaseRepo{db: db} }

// List returns every phase, newest first.
func (r *PhaseRepo) List(ctx context.Context) ([]model.Phase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, DATE_FORMAT(start_date, '%Y-%m-%d'), DATE_FORMAT(end_date, '%Y-%m-%d'), created_at
		 FROM phases ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Phase{}
	for rows.Next() {
		var p model.Phase
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts p.
func (r *PhaseRepo) Create(ctx context.Context, p *model.Phase) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO phases (name, start_date, end_date) VALUES (?, ?, ?)`, p.Name, p.StartDate, p.EndDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM phases WHERE id = ?`, id).Scan(&p.CreatedAt)
}

// SetAllocation creates or replaces a site's allocation within a phase.
// Unknown phases or sites return ErrNotFound.
func (r *PhaseRepo) SetAllocation(ctx context.Context, phaseID, siteID int64, allocation int) (*model.SiteAllocation, error) {
	for _, check := range []struct {
		table string
		id    int64
	}{{"phases", phaseID}, {"employer_sites", siteID}} {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM `+check.table+` WHERE id = ?`, check.id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", check.table, check.id, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO site_allocations (phase_id, site_id, allocation) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE allocation = VALUES(allocation)`,
		phaseID, siteID, allocation); err != nil {
		return nil, err
	}
	allocs, err := r.Allocations(ctx, phaseID, nil)
	if err != nil {
		return nil, err
	}
	for _, a := range allocs {
		if a.SiteID == siteID {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("allocation %d/%d: %w", phaseID, siteID, ErrNotFound)
}

// Allocations lists the allocations of a phase in regions (nil for all).
// Hired counts current hires at the site whose hire date falls inside the
// phase window.
func (r *PhaseRepo) Allocations(ctx context.Context, phaseID int64, regions []string) ([]model.SiteAllocation, error) {
	scope, args := regionFilter("es.health_authority", regions, false)
	q := `SELECT sa.id, sa.phase_id, sa.site_id, sa.allocation,
	             (SELECT COUNT(*) FROM participant_status ps
	               WHERE ps.site_id = sa.site_id AND ps.is_current = 1 AND ps.status = 'hired'
	                 AND JSON_UNQUOTE(JSON_EXTRACT(ps.data, '$.hiredDate')) BETWEEN DATE_FORMAT(ph.start_date, '%Y-%m-%d') AND DATE_FORMAT(ph.end_date, '%Y-%m-%d'))
	      FROM site_allocations sa
	      JOIN phases ph ON ph.id = sa.phase_id
	      JOIN employer_sites es ON es.id = sa.site_id
	      WHERE sa.phase_id = ?` + scope + `
	      ORDER BY es.site_id`
	rows, err := r.db.QueryContext(ctx, q, append([]any{phaseID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SiteAllocation{}
	for rows.Next() {
		var a model.SiteAllocation
		if err := rows.Scan(&a.ID, &a.PhaseID, &a.SiteID, &a.Allocation, &a.Hired); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
