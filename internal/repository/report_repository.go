package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/hcap-portal/internal/model"
)

// ReportRepo runs the read-only report queries.  Participant counts are
// scoped by the participant's preferred regions; hire and return-of-service
// rows are scoped by the site's health authority.
type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// MilestoneCounts returns total, qualified, in-progress and hired counts.
// In-progress is a current prospecting/interviewing/offer_made row with no
// hired or archived row anywhere in the participant's history: the
// left-outer self-join must come back NULL for the row to count.
func (r *ReportRepo) MilestoneCounts(ctx context.Context, regions []string) (*model.MilestoneReport, error) {
	rep := &model.MilestoneReport{HiredPerRegion: map[string]int{}}
	pScope, pArgs := regionFilter("p.preferred_location", regions, true)

	q := `SELECT COUNT(*),
	             COALESCE(SUM(p.interested = 'yes' AND p.crc_clear = 'yes'), 0)
	      FROM participants p
	      WHERE 1 = 1` + pScope
	if err := r.db.QueryRowContext(ctx, q, pArgs...).Scan(&rep.Total, &rep.Qualified); err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}

	q = `SELECT COUNT(DISTINCT cur.participant_id)
	     FROM participant_status cur
	     JOIN participants p ON p.id = cur.participant_id
	     LEFT JOIN participant_status done
	            ON done.participant_id = cur.participant_id
	           AND done.status IN ('hired', 'archived')
	     WHERE cur.is_current = 1
	       AND cur.status IN ('prospecting', 'interviewing', 'offer_made')
	       AND done.id IS NULL` + pScope
	if err := r.db.QueryRowContext(ctx, q, pArgs...).Scan(&rep.InProgress); err != nil {
		return nil, fmt.Errorf("count in progress: %w", err)
	}

	sScope, sArgs := regionFilter("es.health_authority", regions, false)
	q = `SELECT es.health_authority, COUNT(*)
	     FROM participant_status ps
	     JOIN employer_sites es ON es.id = ps.site_id
	     WHERE ps.is_current = 1 AND ps.status = 'hired'` + sScope + `
	     GROUP BY es.health_authority`
	rows, err := r.db.QueryContext(ctx, q, sArgs...)
	if err != nil {
		return nil, fmt.Errorf("count hired: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var region string
		var n int
		if err := rows.Scan(&region, &n); err != nil {
			return nil, err
		}
		rep.HiredPerRegion[region] = n
		rep.Hired += n
	}
	return rep, rows.Err()
}

// HiredRows returns up to limit currently hired participants whose status
// row id is greater than afterStatusID, in id order.
func (r *ReportRepo) HiredRows(ctx context.Context, regions []string, afterStatusID int64, limit int) ([]model.HiredRow, error) {
	scope, args := regionFilter("es.health_authority", regions, false)
	q := `SELECT ps.id, p.id, p.first_name, p.last_name, p.email, p.phone_number, p.postal_code,
	             ps.data, es.site_id, es.site_name, es.health_authority,
	             COALESCE(JSON_UNQUOTE(JSON_EXTRACT(ros.data, '$.date')), '')
	      FROM participant_status ps
	      JOIN participants p ON p.id = ps.participant_id
	      JOIN employer_sites es ON es.id = ps.site_id
	      LEFT JOIN ros_status ros ON ros.participant_id = ps.participant_id AND ros.is_current = 1
	      WHERE ps.is_current = 1 AND ps.status = 'hired' AND ps.id > ?` + scope + `
	      ORDER BY ps.id
	      LIMIT ?`
	params := append([]any{afterStatusID}, args...)
	params = append(params, limit)
	rows, err := r.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.HiredRow, 0, limit)
	for rows.Next() {
		var row model.HiredRow
		var data []byte
		if err := rows.Scan(&row.StatusID, &row.ParticipantID, &row.FirstName, &row.LastName, &row.Email,
			&row.PhoneNumber, &row.PostalCode, &data, &row.SiteID, &row.SiteName, &row.HealthAuthority,
			&row.ROSStartDate); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &row.Hire); err != nil {
				return nil, fmt.Errorf("participant_status %d: decode data: %w", row.StatusID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ROSRows returns every current return-of-service record in scope.
func (r *ReportRepo) ROSRows(ctx context.Context, regions []string) ([]model.ROSRow, error) {
	scope, args := regionFilter("es.health_authority", regions, false)
	q := `SELECT p.id, p.first_name, p.last_name, p.email, ros.status, ros.data,
	             es.site_id, es.site_name, es.health_authority
	      FROM ros_status ros
	      JOIN participants p ON p.id = ros.participant_id
	      JOIN employer_sites es ON es.id = ros.site_id
	      WHERE ros.is_current = 1` + scope + `
	      ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ROSRow
	for rows.Next() {
		var row model.ROSRow
		var data []byte
		if err := rows.Scan(&row.ParticipantID, &row.FirstName, &row.LastName, &row.Email, &row.Status, &data,
			&row.SiteID, &row.SiteName, &row.HealthAuthority); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &row.Data); err != nil {
				return nil, fmt.Errorf("ros_status of participant %d: decode data: %w", row.ParticipantID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PSIParticipantRows returns every cohort-assigned participant whose
// institute is in scope, with their current status if any.
func (r *ReportRepo) PSIParticipantRows(ctx context.Context, regions []string) ([]model.PSIRow, error) {
	scope, args := regionFilter("psi.health_authority", regions, false)
	q := `SELECT p.id, p.first_name, p.last_name, p.email,
	             psi.institute_name, c.cohort_name,
	             DATE_FORMAT(c.start_date, '%Y-%m-%d'), DATE_FORMAT(c.end_date, '%Y-%m-%d'),
	             psi.health_authority, COALESCE(ps.status, '')
	      FROM cohort_participants cp
	      JOIN participants p ON p.id = cp.participant_id
	      JOIN cohorts c ON c.id = cp.cohort_id
	      JOIN post_secondary_institutions psi ON psi.id = c.psi_id
	      LEFT JOIN participant_status ps ON ps.participant_id = p.id AND ps.is_current = 1
	      WHERE 1 = 1` + scope + `
	      ORDER BY psi.institute_name, c.cohort_name, p.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PSIRow
	for rows.Next() {
		var row model.PSIRow
		if err := rows.Scan(&row.ParticipantID, &row.FirstName, &row.LastName, &row.Email,
			&row.InstituteName, &row.CohortName, &row.CohortStartDate, &row.CohortEndDate,
			&row.HealthAuthority, &row.CurrentStatus); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
