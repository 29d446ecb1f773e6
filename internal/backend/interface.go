package backend

import (
	"context"

	"patrimonio/internal/ports"
)

// Stores bundles every persistence port the services need.
type Stores interface {
	ports.LifeEventStore
	ports.PlanStore
	ports.RunStore
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the stores and the hooks that go with them.
type BackendResult struct {
	Stores  Stores
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs the cleanup hook when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// LifeEventsFile seeds the memory backend. Empty means start empty.
	LifeEventsFile string
}

// BackendType represents the type of persistence backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// IsValid checks if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (bt BackendType) String() string {
	return string(bt)
}
