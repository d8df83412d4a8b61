package service

import (
	"context"

	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
)

// StatusTx is the storage view a status or return-of-service write runs in.
// Lock* methods return the current row (nil when there is none) and hold it
// until the transaction ends.  Supersede* clears the current flag and
// returns repository.ErrConflict when the row is no longer current.
type StatusTx interface {
	ParticipantExists(ctx context.Context, participantID int64) (bool, error)
	SiteExists(ctx context.Context, siteID int64) (bool, error)
	LockCurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error)
	SupersedeStatus(ctx context.Context, id int64) error
	InsertStatus(ctx context.Context, rec *model.StatusRecord) error
	LockCurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error)
	SupersedeROS(ctx context.Context, id int64) error
	InsertROS(ctx context.Context, rec *model.ROSRecord) error
}

// StatusStore is the only writer of status and return-of-service rows.
type StatusStore interface {
	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(StatusTx) error) error
	CurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error)
	StatusHistory(ctx context.Context, participantID int64) ([]model.StatusRecord, error)
	CurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error)
	ROSHistory(ctx context.Context, participantID int64) ([]model.ROSRecord, error)
}

// ReportStore runs the read-only report queries.  A nil regions slice means
// every region; an empty one matches nothing.
type ReportStore interface {
	MilestoneCounts(ctx context.Context, regions []string) (*model.MilestoneReport, error)
	HiredRows(ctx context.Context, regions []string, afterStatusID int64, limit int) ([]model.HiredRow, error)
	ROSRows(ctx context.Context, regions []string) ([]model.ROSRow, error)
	PSIParticipantRows(ctx context.Context, regions []string) ([]model.PSIRow, error)
}

// EventPublisher receives an event after every committed write.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, ev queue.StatusChangedEvent) error
}

// sqlStatusStore adapts the MySQL repository to StatusStore.
type sqlStatusStore struct {
	*repository.StatusRepo
}

// NewSQLStatusStore wraps repo so its transactions satisfy StatusStore.
func NewSQLStatusStore(repo *repository.StatusRepo) StatusStore {
	return sqlStatusStore{StatusRepo: repo}
}

func (s sqlStatusStore) InTx(ctx context.Context, fn func(StatusTx) error) error {
	return s.StatusRepo.InTx(ctx, func(tx *repository.StatusTx) error { return fn(tx) })
}
