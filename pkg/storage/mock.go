package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
)

// MockStorage is an in-memory implementation of Storage for tests and local runs.
type MockStorage struct {
	mu       sync.RWMutex
	episodes map[string]episode.Episode
	deleted  map[string]struct{}
	profiles map[string]*state.PlayerState
	inbox    map[string][]Message

	pingError   error
	sourceError error
	ledgerError error
	saveError   error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		episodes: make(map[string]episode.Episode),
		deleted:  make(map[string]struct{}),
		profiles: make(map[string]*state.PlayerState),
		inbox:    make(map[string][]Message),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSourceError makes catalog reads fail with err until reset with nil.
func (m *MockStorage) SetSourceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceError = err
}

// SetLedgerError makes ledger reads and writes fail with err until reset with nil.
func (m *MockStorage) SetLedgerError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerError = err
}

// SetSaveError makes SaveProfile fail with err until reset with nil.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// AddEpisode adds an episode to the mock catalog
func (m *MockStorage) AddEpisode(ep episode.Episode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[ep.ID] = ep
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// Episode catalog

func (m *MockStorage) ListEpisodes(ctx context.Context) ([]episode.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sourceError != nil {
		return nil, m.sourceError
	}
	out := make([]episode.Episode, 0, len(m.episodes))
	for _, ep := range m.episodes {
		out = append(out, ep)
	}
	return out, nil
}

func (m *MockStorage) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sourceError != nil {
		return nil, m.sourceError
	}
	ep, ok := m.episodes[id]
	if !ok {
		return nil, nil
	}
	return &ep, nil
}

// Deletion ledger

func (m *MockStorage) IsDeleted(ctx context.Context, episodeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ledgerError != nil {
		return false, m.ledgerError
	}
	_, ok := m.deleted[episodeID]
	return ok, nil
}

func (m *MockStorage) MarkDeleted(ctx context.Context, episodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgerError != nil {
		return m.ledgerError
	}
	m.deleted[episodeID] = struct{}{}
	return nil
}

func (m *MockStorage) ListDeleted(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ledgerError != nil {
		return nil, m.ledgerError
	}
	ids := make([]string, 0, len(m.deleted))
	for id := range m.deleted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Profiles

// SaveProfile stores a copy so later mutations by the caller are not visible.
func (m *MockStorage) SaveProfile(ctx context.Context, ps *state.PlayerState) error {
	if ps == nil {
		return errors.New("profile cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	ps.Touch()
	m.profiles[ps.ProfileID] = ps.Clone()
	return nil
}

func (m *MockStorage) LoadProfile(ctx context.Context, profileID string) (*state.PlayerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.profiles[profileID]
	if !ok {
		return nil, nil
	}
	return ps.Clone(), nil
}

func (m *MockStorage) DeleteProfile(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, profileID)
	delete(m.inbox, profileID)
	return nil
}

// Inbox

func (m *MockStorage) PushMessage(ctx context.Context, profileID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox[profileID] = append(m.inbox[profileID], msg)
	return nil
}

func (m *MockStorage) Messages(ctx context.Context, profileID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.inbox[profileID]), nil
}

func (m *MockStorage) ClearMessages(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inbox, profileID)
	return nil
}
