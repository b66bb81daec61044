package bridge

import (
	"sort"
	"sync"
)

// StateStore is the single owner of all mutable load state. Every update
// goes through the same mutex so read-modify-diff sequences are atomic.
type StateStore struct {
	mutex sync.Mutex
	loads map[int]*LoadState
}

func NewStateStore() *StateStore {
	return &StateStore{loads: map[int]*LoadState{}}
}

// Seed installs the initial set of loads. Loads are never removed for the
// lifetime of the process.
func (s *StateStore) Seed(loads []LoadState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, load := range loads {
		load := load
		if load.LastNonZero < 1 || load.LastNonZero > 255 {
			load.LastNonZero = 255
		}
		normalize(&load)
		s.loads[load.Id] = &load
	}
}

func (s *StateStore) Get(id int) (LoadState, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	load, ok := s.loads[id]
	if !ok {
		return LoadState{}, false
	}
	return *load, true
}

// All returns a snapshot of every load, ordered by id.
func (s *StateStore) All() []LoadState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	states := make([]LoadState, 0, len(s.loads))
	for _, load := range s.loads {
		states = append(states, *load)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Id < states[j].Id })
	return states
}

func (s *StateStore) Count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.loads)
}

// LastNonZero returns the brightness a bare ON should restore for the load.
func (s *StateStore) LastNonZero(id int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	load, ok := s.loads[id]
	if !ok {
		return 255
	}
	return load.LastNonZero
}

func (s *StateStore) IsDimmable(id int) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	load, ok := s.loads[id]
	if !ok {
		return true
	}
	return load.Dimmable
}

// ApplyPollResult overwrites the state of one load with a polled brightness
// and returns the prior state plus whether power or brightness changed.
func (s *StateStore) ApplyPollResult(id int, brightness int) (LoadState, LoadState, bool) {
	return s.apply(id, brightness)
}

// ApplyCommandResult overwrites the state of one load after a successful
// command, optimistically, without waiting for a poll.
func (s *StateStore) ApplyCommandResult(id int, brightness int) (LoadState, LoadState, bool) {
	return s.apply(id, brightness)
}

func (s *StateStore) apply(id int, brightness int) (LoadState, LoadState, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	load, ok := s.loads[id]
	if !ok {
		return LoadState{}, LoadState{}, false
	}
	prior := *load

	load.Brightness = brightness
	if load.Brightness > 0 {
		load.LastNonZero = load.Brightness
	}
	normalize(load)

	changed := load.Power != prior.Power || load.Brightness != prior.Brightness
	return prior, *load, changed
}

// normalize enforces the state invariants: brightness stays in 0-255 and
// power is exactly "brightness is nonzero".
func normalize(load *LoadState) {
	if load.Brightness < 0 {
		load.Brightness = 0
	} else if load.Brightness > 255 {
		load.Brightness = 255
	}
	load.Power = load.Brightness > 0
}
