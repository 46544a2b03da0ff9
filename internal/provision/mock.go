package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/ambrook/skirmishd/internal/model"
)

// MockProvisioner is a Provisioner for testing that returns queued handles
// or a configured error
type MockProvisioner struct {
	mu       sync.Mutex
	handles  []model.LaunchHandle
	err      error
	requests []model.SessionID
	seq      int
}

var _ Provisioner = (*MockProvisioner)(nil)

// NewMockProvisioner creates a MockProvisioner with no queued handles;
// unqueued requests succeed with generated handles
func NewMockProvisioner() *MockProvisioner {
	return &MockProvisioner{}
}

// QueueHandle adds handles to be returned by subsequent requests
func (m *MockProvisioner) QueueHandle(handles ...model.LaunchHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = append(m.handles, handles...)
}

// FailWith makes all subsequent requests fail with the given error
func (m *MockProvisioner) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns the session IDs of all launch requests received
func (m *MockProvisioner) Requests() []model.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SessionID(nil), m.requests...)
}

// RequestLaunch records the request and returns the next queued handle
func (m *MockProvisioner) RequestLaunch(ctx context.Context, session *model.GameSession) (model.LaunchHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, session.ID)
	if m.err != nil {
		return "", m.err
	}
	if len(m.handles) > 0 {
		handle := m.handles[0]
		m.handles = m.handles[1:]
		return handle, nil
	}
	m.seq++
	return model.LaunchHandle(fmt.Sprintf("handle%03d", m.seq)), nil
}
