package vchan

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"avaneesh/vchan-go/pkg/internal/logger"
)

// Manager owns a set of named channels
type Manager struct {
	channels map[string]*Vchan
	mu       sync.RWMutex
	logger   logger.Logger
	conns    ConnStats
}

// NewManager creates a new manager using the package default logger
func NewManager() *Manager {
	return NewManagerWithLogger(logger.GetDefault())
}

// NewManagerWithLogger creates a new manager with custom logger
func NewManagerWithLogger(log Logger) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Manager{
		channels: make(map[string]*Vchan),
		logger:   log,
	}
}

// AddServer creates a server channel under id
func (m *Manager) AddServer(id string, config Config) (*Vchan, error) {
	if config.Logger == nil {
		config.Logger = m.logger
	}
	return m.add(id, func() (*Vchan, error) {
		return NewServer(config)
	})
}

// AddClient connects a client channel under id. The manager lock is not held
// while connecting.
func (m *Manager) AddClient(ctx context.Context, id string, config Config) (*Vchan, error) {
	if config.Logger == nil {
		config.Logger = m.logger
	}
	return m.add(id, func() (*Vchan, error) {
		return NewClient(ctx, config)
	})
}

func (m *Manager) add(id string, create func() (*Vchan, error)) (*Vchan, error) {
	m.mu.RLock()
	_, exists := m.channels[id]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("channel %s already exists", id)
	}

	v, err := create()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel %s: %w", id, err)
	}

	m.mu.Lock()
	if _, exists := m.channels[id]; exists {
		m.mu.Unlock()
		v.Close()
		return nil, fmt.Errorf("channel %s already exists", id)
	}
	m.channels[id] = v
	m.conns.New()
	m.conns.Open()
	m.mu.Unlock()

	m.logger.Info("Manager: Added channel %s %s", id, &m.conns)
	return v, nil
}

// Get returns a channel by id
func (m *Manager) Get(id string) (*Vchan, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.channels[id]
	return v, ok
}

// Remove closes a channel and forgets it
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	v, exists := m.channels[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("channel %s not found", id)
	}
	delete(m.channels, id)
	m.mu.Unlock()

	if err := v.Close(); err != nil {
		m.logger.Error("Error closing channel %s: %v", id, err)
	}
	m.conns.Close()
	m.logger.Info("Manager: Removed channel %s %s", id, &m.conns)
	return nil
}

// Shutdown closes every channel concurrently and returns the first close error
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*Vchan)
	m.mu.Unlock()

	m.logger.Info("Manager: Shutting down")

	var g errgroup.Group
	for id, v := range channels {
		g.Go(func() error {
			defer m.conns.Close()
			if err := v.Close(); err != nil {
				m.logger.Error("Error closing channel %s: %v", id, err)
				return fmt.Errorf("close channel %s: %w", id, err)
			}
			return nil
		})
	}
	err := g.Wait()

	m.logger.Info("Manager: Shutdown complete")
	return err
}

// Count returns the number of channels
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// ConnStats returns the number of open channels and the number ever added
func (m *Manager) ConnStats() (open, total int32) {
	return m.conns.Counts()
}
