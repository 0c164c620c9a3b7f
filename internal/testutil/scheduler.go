package testutil

import (
	"slices"
	"sync"

	"github.com/zjrosen/mqttdesk/internal/appdata"
)

// RecordingScheduler applies transforms to its AppData at once and records
// their names.
type RecordingScheduler struct {
	mu    sync.Mutex
	data  *appdata.AppData
	names []string
}

// NewRecordingScheduler applies transforms to d, or to fresh state when d is nil.
func NewRecordingScheduler(d *appdata.AppData) *RecordingScheduler {
	if d == nil {
		d = appdata.New()
	}
	return &RecordingScheduler{data: d}
}

func (s *RecordingScheduler) Schedule(name string, t appdata.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	t(s.data)
}

// Names returns the transforms applied so far.
func (s *RecordingScheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.names)
}

// Count returns how often the named transform was applied.
func (s *RecordingScheduler) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.names {
		if got == name {
			n++
		}
	}
	return n
}

// Reset forgets the recorded names.
func (s *RecordingScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = nil
}

// View runs f with the state locked.
func (s *RecordingScheduler) View(f func(d *appdata.AppData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.data)
}
