package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/transition"
	"github.com/iliyamo/hcap-portal/internal/utils"
)

const (
	ActionROSCreate     = "ros_create"
	ActionROSChangeSite = "ros_change_site"
	ActionROSUpdate     = "ros_update"
)

// ROSRequest starts or moves a return-of-service assignment.  A zero SiteID
// on create means the site of the hire.
type ROSRequest struct {
	SiteID int64         `json:"site" validate:"gte=0"`
	Data   model.ROSData `json:"data"`
}

// ROSUpdate corrects the payload of the current record.
type ROSUpdate struct {
	Data model.ROSData `json:"data"`
}

// ROSView is the current record plus its derived service window end.
type ROSView struct {
	model.ROSRecord
	EndDate string `json:"endDate"`
}

// ROSService is the sole writer of ros_status rows.
type ROSService struct {
	store    StatusStore
	events   EventPublisher
	log      *zap.Logger
	validate *validator.Validate
}

func NewROSService(store StatusStore, events EventPublisher, log *zap.Logger) *ROSService {
	if store == nil || log == nil {
		panic("nil dependency passed to NewROSService")
	}
	return &ROSService{store: store, events: events, log: log, validate: NewValidator()}
}

// Create opens the return-of-service record of a hired participant.
func (s *ROSService) Create(ctx context.Context, actor auth.Actor, participantID int64, req ROSRequest) (*model.ROSRecord, error) {
	return s.write(ctx, ActionROSCreate, actor, participantID, req.Data, func(ctx context.Context, tx StatusTx, cur *model.ROSRecord) (*model.ROSRecord, error) {
		if cur != nil {
			return nil, fmt.Errorf("participant %d already has a return of service record: %w", participantID, repository.ErrConflict)
		}
		st, err := tx.LockCurrentStatus(ctx, participantID)
		if err != nil {
			return nil, err
		}
		if st == nil || st.Status != model.StatusHired {
			return nil, ErrNotHired
		}
		site := req.SiteID
		if site == 0 && st.SiteID != nil {
			site = *st.SiteID
		}
		if site == 0 {
			return nil, &ValidationError{Message: "site is required", Fields: []FieldError{{Field: "site", Rule: "required"}}}
		}
		if err := s.checkSite(ctx, tx, actor, site); err != nil {
			return nil, err
		}
		return &model.ROSRecord{
			ParticipantID: participantID,
			SiteID:        site,
			Status:        model.ROSAssignedSameSite,
			Data:          req.Data,
		}, nil
	})
}

// ChangeSite re-assigns the participant to another site.  The new record
// points at the one it replaces.
func (s *ROSService) ChangeSite(ctx context.Context, actor auth.Actor, participantID int64, req ROSRequest) (*model.ROSRecord, error) {
	return s.write(ctx, ActionROSChangeSite, actor, participantID, req.Data, func(ctx context.Context, tx StatusTx, cur *model.ROSRecord) (*model.ROSRecord, error) {
		if cur == nil {
			return nil, fmt.Errorf("participant %d has no return of service record: %w", participantID, repository.ErrNotFound)
		}
		if req.SiteID <= 0 {
			return nil, &ValidationError{Message: "site is required", Fields: []FieldError{{Field: "site", Rule: "required"}}}
		}
		if req.SiteID == cur.SiteID {
			return nil, &ValidationError{Message: "participant is already assigned to this site", Fields: []FieldError{{Field: "site", Rule: "ne"}}}
		}
		if err := s.checkSite(ctx, tx, actor, req.SiteID); err != nil {
			return nil, err
		}
		return &model.ROSRecord{
			ParticipantID: participantID,
			SiteID:        req.SiteID,
			Status:        model.ROSAssignedNewSite,
			Data:          req.Data,
			PreviousID:    &cur.ID,
		}, nil
	})
}

// Update appends a corrected copy of the current record.  Site and status
// are kept.
func (s *ROSService) Update(ctx context.Context, actor auth.Actor, participantID int64, req ROSUpdate) (*model.ROSRecord, error) {
	if !actor.Can(auth.CanCorrectROS) {
		err := fmt.Errorf("role %q cannot correct return of service: %w", actor.Role, repository.ErrForbidden)
		logFailure(s.log, ActionROSUpdate, actor, participantID, err)
		return nil, err
	}
	return s.write(ctx, ActionROSUpdate, actor, participantID, req.Data, func(ctx context.Context, tx StatusTx, cur *model.ROSRecord) (*model.ROSRecord, error) {
		if cur == nil {
			return nil, fmt.Errorf("participant %d has no return of service record: %w", participantID, repository.ErrNotFound)
		}
		return &model.ROSRecord{
			ParticipantID: participantID,
			SiteID:        cur.SiteID,
			Status:        cur.Status,
			Data:          req.Data,
			PreviousID:    &cur.ID,
		}, nil
	})
}

// Get returns the current record with its end date, or repository.ErrNotFound.
func (s *ROSService) Get(ctx context.Context, participantID int64) (*ROSView, error) {
	cur, err := s.store.CurrentROS(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("participant %d has no return of service record: %w", participantID, repository.ErrNotFound)
	}
	end, err := utils.AddYearToDate(cur.Data.Date)
	if err != nil {
		return nil, err
	}
	return &ROSView{ROSRecord: *cur, EndDate: end}, nil
}

// History returns every return-of-service row of the participant, oldest first.
func (s *ROSService) History(ctx context.Context, participantID int64) ([]model.ROSRecord, error) {
	return s.store.ROSHistory(ctx, participantID)
}

type rosBuilder func(ctx context.Context, tx StatusTx, cur *model.ROSRecord) (*model.ROSRecord, error)

// write validates data, then locks the current row and lets build decide
// the replacement inside one transaction.
func (s *ROSService) write(ctx context.Context, action string, actor auth.Actor, participantID int64, data model.ROSData, build rosBuilder) (*model.ROSRecord, error) {
	rec, prev, err := s.apply(ctx, actor, participantID, data, build)
	if err != nil {
		logFailure(s.log, action, actor, participantID, err)
		return nil, err
	}
	s.publish(ctx, action, actor, rec, prev)
	return rec, nil
}

func (s *ROSService) apply(ctx context.Context, actor auth.Actor, participantID int64, data model.ROSData, build rosBuilder) (*model.ROSRecord, *model.ROSRecord, error) {
	if !actor.Can(auth.CanManageROS) {
		return nil, nil, fmt.Errorf("role %q cannot manage return of service: %w", actor.Role, repository.ErrForbidden)
	}
	if participantID <= 0 {
		return nil, nil, &ValidationError{Message: "invalid participant id", Fields: []FieldError{{Field: "id", Rule: "gt", Param: "0"}}}
	}
	if err := s.validate.Struct(data); err != nil {
		return nil, nil, ValidationFailed("invalid return of service data", err)
	}

	var created, previous *model.ROSRecord
	err := s.store.InTx(ctx, func(tx StatusTx) error {
		ok, err := tx.ParticipantExists(ctx, participantID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("participant %d: %w", participantID, repository.ErrNotFound)
		}
		cur, err := tx.LockCurrentROS(ctx, participantID)
		if err != nil {
			return err
		}
		rec, err := build(ctx, tx, cur)
		if err != nil {
			return err
		}
		if cur != nil {
			if err := tx.SupersedeROS(ctx, cur.ID); err != nil {
				return err
			}
		}
		rec.CreatedBy = actor.ID
		rec.Current = true
		if err := tx.InsertROS(ctx, rec); err != nil {
			return err
		}
		created, previous = rec, cur
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, previous, nil
}

// checkSite applies the site membership rule and confirms the site exists.
func (s *ROSService) checkSite(ctx context.Context, tx StatusTx, actor auth.Actor, site int64) error {
	if !transition.CheckSite(actor.Role, site, actor.Sites) {
		return fmt.Errorf("site %d: %w", site, repository.ErrForbidden)
	}
	ok, err := tx.SiteExists(ctx, site)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("site %d: %w", site, repository.ErrNotFound)
	}
	return nil
}

func (s *ROSService) publish(ctx context.Context, action string, actor auth.Actor, rec, prev *model.ROSRecord) {
	if s.events == nil {
		return
	}
	site := rec.SiteID
	ev := queue.StatusChangedEvent{
		Kind:          queue.KindReturnOfService,
		Action:        action,
		ParticipantID: rec.ParticipantID,
		RecordID:      rec.ID,
		Status:        string(rec.Status),
		SiteID:        &site,
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		OccurredAt:    rec.CreatedAt,
	}
	if prev != nil {
		ev.PreviousID = &prev.ID
		ev.PreviousStatus = string(prev.Status)
	}
	if err := s.events.PublishStatusChanged(ctx, ev); err != nil {
		s.log.Warn("return of service event not published",
			zap.String("action", action), zap.Int64("participant_id", rec.ParticipantID), zap.Error(err))
	}
}
