package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hcap-portal/internal/database"
	"github.com/iliyamo/hcap-portal/internal/model"
)

// SiteRepo provides CRUD access to employer_sites.
type SiteRepo struct {
	db *sql.DB
}

func NewSiteRepo(db *sql.DB) *SiteRepo { return &SiteRepo{db: db} }

// SitePatch holds the editable site fields; nil fields are left alone.
type SitePatch struct {
	SiteName        *string `json:"siteName" validate:"omitempty,min=1,max=255"`
	HealthAuthority *string `json:"healthAuthority" validate:"omitempty,min=1"`
	OperatorName    *string `json:"operatorName" validate:"omitempty,max=255"`
	City            *string `json:"city" validate:"omitempty,max=100"`
	Allocation      *int    `json:"allocation" validate:"omitempty,gte=0"`
}

const siteColumns = `id, site_id, site_name, health_authority, operator_name, city, allocation, created_at, updated_at`

func scanSite(row rowScanner) (*model.EmployerSite, error) {
	var s model.EmployerSite
	err := row.Scan(&s.ID, &s.SiteID, &s.SiteName, &s.HealthAuthority, &s.OperatorName, &s.City, &s.Allocation, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the sites whose health authority is in regions (nil for all).
func (r *SiteRepo) List(ctx context.Context, regions []string) ([]model.EmployerSite, error) {
	scope, args := regionFilter("health_authority", regions, false)
	rows, err := r.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM employer_sites WHERE 1 = 1`+scope+` ORDER BY site_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EmployerSite{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListByIDs returns the sites with the given surrogate ids.
func (r *SiteRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.EmployerSite, error) {
	out := []model.EmployerSite{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM employer_sites WHERE id IN (`+placeholders(len(ids))+`) ORDER BY site_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByID returns the site or ErrNotFound.
func (r *SiteRepo) GetByID(ctx context.Context, id int64) (*model.EmployerSite, error) {
	s, err := scanSite(r.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM employer_sites WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	return s, err
}

// Create inserts s.  A duplicate site_id returns ErrConflict.
func (r *SiteRepo) Create(ctx context.Context, s *model.EmployerSite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO employer_sites (site_id, site_name, health_authority, operator_name, city, allocation) VALUES (?, ?, ?, ?, ?, ?)`,
		s.SiteID, strings.TrimSpace(s.SiteName), s.HealthAuthority, s.OperatorName, s.City, s.Allocation)
	if err != nil {
		if database.IsDuplicate(err) {
			return fmt.Errorf("site id %d: %w", s.SiteID, ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// Update applies patch to site id.
func (r *SiteRepo) Update(ctx context.Context, id int64, patch SitePatch) (*model.EmployerSite, error) {
	sets := []string{}
	args := []any{}
	if patch.SiteName != nil {
		sets, args = append(sets, "site_name = ?"), append(args, strings.TrimSpace(*patch.SiteName))
	}
	if patch.HealthAuthority != nil {
		sets, args = append(sets, "health_authority = ?"), append(args, *patch.HealthAuthority)
	}
	if patch.OperatorName != nil {
		sets, args = append(sets, "operator_name = ?"), append(args, *patch.OperatorName)
	}
	if patch.City != nil {
		sets, args = append(sets, "city = ?"), append(args, *patch.City)
	}
	if patch.Allocation != nil {
		sets, args = append(sets, "allocation = ?"), append(args, *patch.Allocation)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.db.ExecContext(ctx, `UPDATE employer_sites SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}
