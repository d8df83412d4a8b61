// Package service applies participant status and return-of-service
// transitions and builds the read-only reports over them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/hcap-portal/internal/auth"
	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
	"github.com/iliyamo/hcap-portal/internal/transition"
)

// Action names used in logs and events.
const (
	ActionEmployerAction = "employer_action"
	ActionArchive        = "archive"
	ActionBulkEngage     = "bulk_engage"
)

// TransitionRequest asks to move a participant to Status.  CurrentStatusID,
// when set, must be the id of the participant's current status row or the
// request fails with repository.ErrConflict.
type TransitionRequest struct {
	ParticipantID   int64           `json:"participantId" validate:"required,gt=0"`
	Status          model.Status    `json:"status" validate:"required"`
	Data            json.RawMessage `json:"data"`
	CurrentStatusID *int64          `json:"currentStatusId"`
}

// ArchiveRequest archives a hired participant.
type ArchiveRequest struct {
	ParticipantID   int64           `json:"participantId" validate:"required,gt=0"`
	Data            json.RawMessage `json:"data"`
	CurrentStatusID *int64          `json:"currentStatusId"`
}

// BulkResult is the outcome for one participant of a bulk engage.  Status
// is the new status on success or the failure kind otherwise.
type BulkResult struct {
	ParticipantID int64  `json:"participantId"`
	Status        string `json:"status"`
	Success       bool   `json:"success"`
}

// StatusService is the sole writer of participant_status rows.
type StatusService struct {
	store    StatusStore
	events   EventPublisher
	log      *zap.Logger
	validate *validator.Validate
}

// NewStatusService wires the service.  events may be nil.
func NewStatusService(store StatusStore, events EventPublisher, log *zap.Logger) *StatusService {
	if store == nil || log == nil {
		panic("nil dependency passed to NewStatusService")
	}
	return &StatusService{store: store, events: events, log: log, validate: NewValidator()}
}

// Transition validates and applies one status change.
func (s *StatusService) Transition(ctx context.Context, actor auth.Actor, req TransitionRequest) (*model.StatusRecord, error) {
	rec, prev, err := s.apply(ctx, actor, req)
	if err != nil {
		s.logFailure(ActionEmployerAction, actor, req.ParticipantID, err)
		return nil, err
	}
	s.publish(ctx, ActionEmployerAction, actor, rec, prev)
	return rec, nil
}

// Archive moves a hired participant to archived.
func (s *StatusService) Archive(ctx context.Context, actor auth.Actor, req ArchiveRequest) (*model.StatusRecord, error) {
	rec, prev, err := s.apply(ctx, actor, TransitionRequest{
		ParticipantID:   req.ParticipantID,
		Status:          model.StatusArchived,
		Data:            req.Data,
		CurrentStatusID: req.CurrentStatusID,
	})
	if err != nil {
		s.logFailure(ActionArchive, actor, req.ParticipantID, err)
		return nil, err
	}
	s.publish(ctx, ActionArchive, actor, rec, prev)
	return rec, nil
}

// BulkEngage moves every listed participant to prospecting independently.
// It returns exactly one result per input id, in input order.
func (s *StatusService) BulkEngage(ctx context.Context, actor auth.Actor, participantIDs []int64) []BulkResult {
	results := make([]BulkResult, 0, len(participantIDs))
	for _, id := range participantIDs {
		rec, prev, err := s.apply(ctx, actor, TransitionRequest{ParticipantID: id, Status: model.StatusProspecting})
		if err != nil {
			s.logFailure(ActionBulkEngage, actor, id, err)
			results = append(results, BulkResult{ParticipantID: id, Status: failureKind(err), Success: false})
			continue
		}
		s.publish(ctx, ActionBulkEngage, actor, rec, prev)
		results = append(results, BulkResult{ParticipantID: id, Status: string(rec.Status), Success: true})
	}
	return results
}

// Current returns the participant's current status row, or nil.
func (s *StatusService) Current(ctx context.Context, participantID int64) (*model.StatusRecord, error) {
	return s.store.CurrentStatus(ctx, participantID)
}

// History returns every status row of the participant, oldest first.
func (s *StatusService) History(ctx context.Context, participantID int64) ([]model.StatusRecord, error) {
	return s.store.StatusHistory(ctx, participantID)
}

// apply runs the site check, the transition graph and then payload
// validation, and finally supersede -> insert, all in one transaction.  A
// refused state change wins over a bad payload.
func (s *StatusService) apply(ctx context.Context, actor auth.Actor, req TransitionRequest) (*model.StatusRecord, *model.StatusRecord, error) {
	if req.ParticipantID <= 0 {
		return nil, nil, &ValidationError{Message: "invalid participant id", Fields: []FieldError{{Field: "participantId", Rule: "gt", Param: "0"}}}
	}
	if !req.Status.Valid() || req.Status == model.StatusOpen {
		return nil, nil, &RejectedError{Kind: transition.InvalidStatus}
	}
	if site := model.PeekSite(req.Status, req.Data); !transition.CheckSite(actor.Role, site, actor.Sites) {
		return nil, nil, fmt.Errorf("site %d: %w", site, repository.ErrForbidden)
	}

	var created, previous *model.StatusRecord
	err := s.store.InTx(ctx, func(tx StatusTx) error {
		ok, err := tx.ParticipantExists(ctx, req.ParticipantID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("participant %d: %w", req.ParticipantID, repository.ErrNotFound)
		}

		cur, err := tx.LockCurrentStatus(ctx, req.ParticipantID)
		if err != nil {
			return err
		}
		if req.CurrentStatusID != nil && (cur == nil || cur.ID != *req.CurrentStatusID) {
			return fmt.Errorf("status %d is no longer current: %w", *req.CurrentStatusID, repository.ErrConflict)
		}

		var from *model.Status
		if cur != nil {
			from = &cur.Status
		}
		if kind := transition.Validate(from, req.Status, actor.Role); !kind.OK() {
			return &RejectedError{Kind: kind}
		}

		data, err := model.DecodeStatusData(req.Status, req.Data)
		if err != nil {
			return ValidationFailed("invalid status data", err)
		}
		if err := s.validate.Struct(data); err != nil {
			return ValidationFailed("invalid status data", err)
		}
		site, siteBound := model.SiteOf(data)
		if siteBound {
			ok, err := tx.SiteExists(ctx, site)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("site %d: %w", site, repository.ErrNotFound)
			}
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}

		if cur != nil {
			if err := tx.SupersedeStatus(ctx, cur.ID); err != nil {
				return err
			}
		}
		rec := &model.StatusRecord{
			ParticipantID: req.ParticipantID,
			Status:        req.Status,
			Data:          payload,
			Current:       true,
		}
		if !actor.Role.IsMinistry() {
			id := actor.ID
			rec.EmployerID = &id
		}
		if siteBound {
			rec.SiteID = &site
		}
		if err := tx.InsertStatus(ctx, rec); err != nil {
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

func (s *StatusService) publish(ctx context.Context, action string, actor auth.Actor, rec, prev *model.StatusRecord) {
	if s.events == nil {
		return
	}
	ev := queue.StatusChangedEvent{
		Kind:          queue.KindParticipantStatus,
		Action:        action,
		ParticipantID: rec.ParticipantID,
		RecordID:      rec.ID,
		Status:        string(rec.Status),
		SiteID:        rec.SiteID,
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		OccurredAt:    rec.CreatedAt,
	}
	if prev != nil {
		ev.PreviousID = &prev.ID
		ev.PreviousStatus = string(prev.Status)
	}
	if err := s.events.PublishStatusChanged(ctx, ev); err != nil {
		s.log.Warn("status event not published",
			zap.String("action", action), zap.Int64("participant_id", rec.ParticipantID), zap.Error(err))
	}
}

func (s *StatusService) logFailure(action string, actor auth.Actor, participantID int64, err error) {
	logFailure(s.log, action, actor, participantID, err)
}

// logFailure records a failed write with the actor and action.  Business
// rule failures are warnings; anything unexpected is an error.
func logFailure(log *zap.Logger, action string, actor auth.Actor, participantID int64, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)),
		zap.Int64("participant_id", participantID),
		zap.Error(err),
	}
	if failureKind(err) == "ERROR" {
		log.Error("status write failed", fields...)
		return
	}
	log.Warn("status write refused", fields...)
}

// failureKind names err for bulk results and log levels.
func failureKind(err error) string {
	var re *RejectedError
	var ve *ValidationError
	switch {
	case errors.As(err, &re):
		return string(re.Kind)
	case errors.As(err, &ve):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotHired):
		return "NOT_HIRED"
	case errors.Is(err, repository.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, repository.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, repository.ErrConflict):
		return "CONFLICT"
	}
	return "ERROR"
}
