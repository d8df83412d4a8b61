package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/hcap-portal/internal/model"
	"github.com/iliyamo/hcap-portal/internal/queue"
	"github.com/iliyamo/hcap-portal/internal/repository"
)

// memStore is an in-memory StatusStore.  A failed transaction restores the
// snapshot taken when it began, and InsertStatus/InsertROS refuse a second
// current row the way the unique index on current_participant_id does.
type memStore struct {
	mu           sync.Mutex
	participants map[int64]bool
	sites        map[int64]bool
	status       []model.StatusRecord
	ros          []model.ROSRecord
	nextID       int64
	clock        time.Time
}

func newMemStore() *memStore {
	return &memStore{
		participants: map[int64]bool{},
		sites:        map[int64]bool{},
		clock:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addParticipants(ids ...int64) {
	for _, id := range ids {
		m.participants[id] = true
	}
}

func (m *memStore) addSites(ids ...int64) {
	for _, id := range ids {
		m.sites[id] = true
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(StatusTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := append([]model.StatusRecord(nil), m.status...)
	ros := append([]model.ROSRecord(nil), m.ros...)
	next := m.nextID
	if err := fn(memTx{m}); err != nil {
		m.status, m.ros, m.nextID = status, ros, next
		return err
	}
	return nil
}

func (m *memStore) CurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.LockCurrentStatus(ctx, participantID)
}

func (m *memStore) StatusHistory(ctx context.Context, participantID int64) ([]model.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StatusRecord
	for _, r := range m.status {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.LockCurrentROS(ctx, participantID)
}

func (m *memStore) ROSHistory(ctx context.Context, participantID int64) ([]model.ROSRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ROSRecord
	for _, r := range m.ros {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	return out, nil
}

// assertOneCurrent fails the test if any participant has more than one
// current row in either history.
func (m *memStore) assertOneCurrent(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]int{}
	for _, r := range m.status {
		if r.Current {
			seen[r.ParticipantID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("participant %d has %d current status rows", id, n)
		}
	}
	seen = map[int64]int{}
	for _, r := range m.ros {
		if r.Current {
			seen[r.ParticipantID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("participant %d has %d current return of service rows", id, n)
		}
	}
}

type memTx struct{ m *memStore }

func (tx memTx) ParticipantExists(ctx context.Context, id int64) (bool, error) {
	return tx.m.participants[id], nil
}

func (tx memTx) SiteExists(ctx context.Context, id int64) (bool, error) {
	return tx.m.sites[id], nil
}

func (tx memTx) LockCurrentStatus(ctx context.Context, participantID int64) (*model.StatusRecord, error) {
	for i := range tx.m.status {
		if r := tx.m.status[i]; r.ParticipantID == participantID && r.Current {
			return &r, nil
		}
	}
	return nil, nil
}

func (tx memTx) SupersedeStatus(ctx context.Context, id int64) error {
	for i := range tx.m.status {
		if tx.m.status[i].ID == id && tx.m.status[i].Current {
			tx.m.status[i].Current = false
			return nil
		}
	}
	return fmt.Errorf("status %d: %w", id, repository.ErrConflict)
}

func (tx memTx) InsertStatus(ctx context.Context, rec *model.StatusRecord) error {
	if cur, _ := tx.LockCurrentStatus(ctx, rec.ParticipantID); cur != nil && rec.Current {
		return fmt.Errorf("duplicate current status: %w", repository.ErrConflict)
	}
	tx.m.nextID++
	tx.m.clock = tx.m.clock.Add(time.Minute)
	rec.ID = tx.m.nextID
	rec.CreatedAt = tx.m.clock
	tx.m.status = append(tx.m.status, *rec)
	return nil
}

func (tx memTx) LockCurrentROS(ctx context.Context, participantID int64) (*model.ROSRecord, error) {
	for i := range tx.m.ros {
		if r := tx.m.ros[i]; r.ParticipantID == participantID && r.Current {
			return &r, nil
		}
	}
	return nil, nil
}

func (tx memTx) SupersedeROS(ctx context.Context, id int64) error {
	for i := range tx.m.ros {
		if tx.m.ros[i].ID == id && tx.m.ros[i].Current {
			tx.m.ros[i].Current = false
			return nil
		}
	}
	return fmt.Errorf("ros %d: %w", id, repository.ErrConflict)
}

func (tx memTx) InsertROS(ctx context.Context, rec *model.ROSRecord) error {
	if cur, _ := tx.LockCurrentROS(ctx, rec.ParticipantID); cur != nil && rec.Current {
		return fmt.Errorf("duplicate current ros: %w", repository.ErrConflict)
	}
	tx.m.nextID++
	tx.m.clock = tx.m.clock.Add(time.Minute)
	rec.ID = tx.m.nextID
	rec.CreatedAt = tx.m.clock
	tx.m.ros = append(tx.m.ros, *rec)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.StatusChangedEvent
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, ev queue.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

// memReportStore serves canned report rows, filtering by region the way
// the SQL queries do.
type memReportStore struct {
	hired     []model.HiredRow
	ros       []model.ROSRow
	psi       []model.PSIRow
	counts    model.MilestoneReport
	hiredCall int
	lastScope []string
}

func inScope(regions []string, region string) bool {
	if regions == nil {
		return true
	}
	for _, r := range regions {
		if r == region {
			return true
		}
	}
	return false
}

func (s *memReportStore) MilestoneCounts(ctx context.Context, regions []string) (*model.MilestoneReport, error) {
	s.lastScope = regions
	rep := s.counts
	return &rep, nil
}

func (s *memReportStore) HiredRows(ctx context.Context, regions []string, after int64, limit int) ([]model.HiredRow, error) {
	s.hiredCall++
	s.lastScope = regions
	rows := append([]model.HiredRow(nil), s.hired...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].StatusID < rows[j].StatusID })
	var out []model.HiredRow
	for _, r := range rows {
		if r.StatusID <= after || !inScope(regions, r.HealthAuthority) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memReportStore) ROSRows(ctx context.Context, regions []string) ([]model.ROSRow, error) {
	s.lastScope = regions
	var out []model.ROSRow
	for _, r := range s.ros {
		if inScope(regions, r.HealthAuthority) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memReportStore) PSIParticipantRows(ctx context.Context, regions []string) ([]model.PSIRow, error) {
	s.lastScope = regions
	var out []model.PSIRow
	for _, r := range s.psi {
		if inScope(regions, r.HealthAuthority) {
			out = append(out, r)
		}
	}
	return out, nil
}
