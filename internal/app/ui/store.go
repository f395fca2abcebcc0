// Package ui keeps what the presentation layer renders besides the scene:
// toasts, dialogs, the loading indicator and sequence counters.
package ui

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/domain"
)

const DefaultMaxToasts = 20

type Toast struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is a copy of the store for rendering.
type Snapshot struct {
	Toasts      []Toast         `json:"toasts"`
	Dialogs     []domain.Dialog `json:"dialogs"`
	Loading     bool            `json:"loading"`
	CurSeqID    int64           `json:"curSeqId"`
	LatestSeqID int64           `json:"latestSeqId"`
}

// Store implements core.UI in memory. Toasts are capped, oldest dropped first.
type Store struct {
	mu        sync.RWMutex
	maxToasts int
	toasts    []Toast
	dialogs   []domain.Dialog
	loading   bool
	curSeq    int64
	lastSeq   int64
}

func NewStore(maxToasts int) *Store {
	if maxToasts <= 0 {
		maxToasts = DefaultMaxToasts
	}
	return &Store{maxToasts: maxToasts}
}

func (s *Store) AddToast(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, Toast{ID: uuid.NewString(), Message: message, At: time.Now()})
	if over := len(s.toasts) - s.maxToasts; over > 0 {
		s.toasts = slices.Delete(s.toasts, 0, over)
	}
	log.Debug().Str("module", "app.ui").Str("toast", message).Msg("toast added")
}

func (s *Store) Toasts() []Toast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.toasts)
}

func (s *Store) ShowDialog(d domain.Dialog) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.dialogs = append(s.dialogs, d)
	log.Info().Str("module", "app.ui").Str("dialog", d.ID).Str("type", d.Type).Str("user", d.UserUUID).Msg("dialog shown")
	return d.ID
}

func (s *Store) RemoveDialog(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs = slices.DeleteFunc(s.dialogs, func(d domain.Dialog) bool { return d.ID == id })
}

func (s *Store) Dialogs() []domain.Dialog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.dialogs)
}

func (s *Store) StartLoading() {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
}

func (s *Store) StopLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) UpdateCurSeqID(id int64) {
	s.mu.Lock()
	s.curSeq = id
	s.mu.Unlock()
}

func (s *Store) UpdateLastSeqID(id int64) {
	s.mu.Lock()
	s.lastSeq = id
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Toasts:      slices.Clone(s.toasts),
		Dialogs:     slices.Clone(s.dialogs),
		Loading:     s.loading,
		CurSeqID:    s.curSeq,
		LatestSeqID: s.lastSeq,
	}
}
