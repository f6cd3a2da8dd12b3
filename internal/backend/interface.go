// Package backend builds the Remote Ledger selected by configuration.
package backend

import (
	"context"

	gsheet "spendtracker/internal/sheets/google"
	ports "spendtracker/internal/sheets"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests right now.
type ReadyFunc func(ctx context.Context) error

// BackendResult is a ready ledger plus the hooks the server needs around it.
type BackendResult struct {
	Ledger ports.Ledger
	// Ready is nil when the backend has nothing to probe.
	Ready ReadyFunc
	// Cleanup is never nil.
	Cleanup CleanupFunc
	// Publishing reports whether saved expenses are announced over AMQP.
	Publishing bool
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what the factory needs for every backend type.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// AMQP settings are optional for every backend. When AMQPURL is set,
	// saved expenses are published to the exchange.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Google gsheet.Config
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
