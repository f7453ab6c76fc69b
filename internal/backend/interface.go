package backend

import (
	"context"

	"hisab/internal/core"
	"hisab/internal/services"
	"hisab/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is the store selected by configuration plus the optional
// change publisher wired next to it.
type BackendResult struct {
	Store storage.Backend
	// Publisher is nil when AMQP is not configured or unreachable.
	Publisher services.ChangePublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// SeedFile replaces the bundled sample data; for sqlite it is only
	// applied to an empty database.
	SeedFile       string
	InitiationDate core.Date

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
