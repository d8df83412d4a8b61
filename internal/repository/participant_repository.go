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

// ParticipantRepo provides CRUD access to the participants table.
// PreferredLocation is stored without spaces after commas so it can be
// matched with FIND_IN_SET.
type ParticipantRepo struct {
	db *sql.DB
}

func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// ParticipantFilter narrows List.  Regions follows the report convention:
// nil is every region, empty is none.  Status "open" selects participants
// without any current status row.
type ParticipantFilter struct {
	Regions []string
	Status  string
	Limit   int
	Offset  int
}

// ParticipantPatch holds the editable fields; nil fields are left alone.
type ParticipantPatch struct {
	FirstName         *string  `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName          *string  `json:"lastName" validate:"omitempty,min=1,max=100"`
	PhoneNumber       *string  `json:"phoneNumber" validate:"omitempty,max=32"`
	PostalCode        *string  `json:"postalCode" validate:"omitempty,max=16"`
	PreferredLocation []string `json:"preferredLocation" validate:"omitempty,dive,required"`
	Interested        *string  `json:"interested" validate:"omitempty,oneof=yes no withdrawn"`
	CRCClear          *string  `json:"crcClear" validate:"omitempty,oneof=yes no"`
}

const participantColumns = `p.id, p.first_name, p.last_name, p.email, p.phone_number, p.postal_code,
	p.preferred_location, p.interested, p.crc_clear, p.created_at, p.updated_at`

func scanParticipant(row rowScanner, extra ...any) (*model.Participant, error) {
	var p model.Participant
	dest := []any{&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &p.PostalCode,
		&p.PreferredLocation, &p.Interested, &p.CRCClear, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p and fills in its id and timestamps.  A duplicate email
// returns ErrConflict.
func (r *ParticipantRepo) Create(ctx context.Context, p *model.Participant) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.PreferredLocation = joinRegions(strings.Split(p.PreferredLocation, ","))
	if p.Interested == "" {
		p.Interested = "yes"
	}
	if p.CRCClear == "" {
		p.CRCClear = "no"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (first_name, last_name, email, phone_number, postal_code, preferred_location, interested, crc_clear)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.PostalCode, p.PreferredLocation, p.Interested, p.CRCClear)
	if err != nil {
		if database.IsDuplicate(err) {
			return fmt.Errorf("email %s: %w", p.Email, ErrConflict)
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
	*p = *created
	return nil
}

// GetByID returns the participant or ErrNotFound.
func (r *ParticipantRepo) GetByID(ctx context.Context, id int64) (*model.Participant, error) {
	p, err := scanParticipant(r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %d: %w", id, ErrNotFound)
	}
	return p, err
}

// GetByEmail returns the participant with the normalised email or ErrNotFound.
func (r *ParticipantRepo) GetByEmail(ctx context.Context, email string) (*model.Participant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := scanParticipant(r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants p WHERE p.email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %s: %w", email, ErrNotFound)
	}
	return p, err
}

// List returns one page of participants with their current status and the
// total number of matches.
func (r *ParticipantRepo) List(ctx context.Context, f ParticipantFilter) ([]model.ParticipantWithStatus, int, error) {
	where := ` WHERE 1 = 1`
	scope, args := regionFilter("p.preferred_location", f.Regions, true)
	where += scope
	switch {
	case f.Status == string(model.StatusOpen):
		where += ` AND ps.id IS NULL`
	case f.Status != "":
		where += ` AND ps.status = ?`
		args = append(args, f.Status)
	}
	from := ` FROM participants p LEFT JOIN participant_status ps ON ps.participant_id = p.id AND ps.is_current = 1`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + participantColumns + `, ps.id, ps.employer_id, ps.site_id, ps.status, ps.data, ps.created_at` +
		from + where + ` ORDER BY p.id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.ParticipantWithStatus{}
	for rows.Next() {
		var (
			sid       sql.NullInt64
			employer  sql.NullString
			site      sql.NullInt64
			status    sql.NullString
			data      []byte
			createdAt sql.NullTime
		)
		p, err := scanParticipant(rows, &sid, &employer, &site, &status, &data, &createdAt)
		if err != nil {
			return nil, 0, err
		}
		item := model.ParticipantWithStatus{Participant: *p}
		if sid.Valid {
			rec := &model.StatusRecord{
				ID:            sid.Int64,
				ParticipantID: p.ID,
				Status:        model.Status(status.String),
				Data:          data,
				Current:       true,
				CreatedAt:     createdAt.Time,
			}
			if employer.Valid {
				e := employer.String
				rec.EmployerID = &e
			}
			if site.Valid {
				s := site.Int64
				rec.SiteID = &s
			}
			item.CurrentStatus = rec
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// Update applies patch to participant id.  It returns ErrNotFound when the
// participant does not exist.
func (r *ParticipantRepo) Update(ctx context.Context, id int64, patch ParticipantPatch) (*model.Participant, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, strings.TrimSpace(*v))
		}
	}
	add("first_name", patch.FirstName)
	add("last_name", patch.LastName)
	add("phone_number", patch.PhoneNumber)
	add("postal_code", patch.PostalCode)
	add("interested", patch.Interested)
	add("crc_clear", patch.CRCClear)
	if patch.PreferredLocation != nil {
		sets = append(sets, "preferred_location = ?")
		args = append(args, joinRegions(patch.PreferredLocation))
	}
	if len(sets) > 0 {
		args = append(args, id)
		// A no-op update affects 0 rows in MySQL; existence is checked by
		// the read below instead.
		if _, err := r.db.ExecContext(ctx, `UPDATE participants SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// Delete hard-deletes a participant and, through the cascades, its history.
func (r *ParticipantRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("participant %d: %w", id, ErrNotFound)
	}
	return nil
}
