package audit

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one resolved veto step.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomCode  string    `gorm:"index;not null" json:"room_code"`
	Step      int       `gorm:"not null" json:"step"`
	Team      int       `gorm:"not null" json:"team"`
	Kind      string    `gorm:"not null" json:"kind"`
	MapIDs    string    `gorm:"not null" json:"map_ids"`
	Source    string    `gorm:"not null" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (Record) TableName() string { return "veto_actions" }

type Store interface {
	Append(ctx context.Context, recs ...Record) error
	List(ctx context.Context, roomCode string) ([]Record, error)
}

// MemoryStore keeps records in process. Used in dev and tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, recs ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		m.recs = append(m.recs, r)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, roomCode string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.recs {
		if r.RoomCode == roomCode {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int { return a.Step - b.Step })
	return out, nil
}
