package backend

import (
	"context"
	"fmt"
	"log/slog"

	"spendtracker/internal/amqp"
	"spendtracker/internal/services"
	gsheet "spendtracker/internal/sheets/google"
	"spendtracker/internal/sheets/memory"
	"spendtracker/internal/storage"
)

// EventPublisher is an AMQP connection that can announce expenses.
type EventPublisher interface {
	services.Publisher
	Close() error
}

// DialFunc opens an EventPublisher. amqp.NewClient is the default.
type DialFunc func(url, exchange, queue string) (EventPublisher, error)

type DefaultFactory struct {
	logger *slog.Logger
	dial   DialFunc
}

type FactoryOption func(*DefaultFactory)

// WithDialer replaces the AMQP dialer.
func WithDialer(dial DialFunc) FactoryOption {
	return func(f *DefaultFactory) { f.dial = dial }
}

func NewFactory(logger *slog.Logger, opts ...FactoryOption) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &DefaultFactory{
		logger: logger,
		dial: func(url, exchange, queue string) (EventPublisher, error) {
			return amqp.NewClient(url, exchange, queue)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend opens the configured ledger and, when AMQP is configured,
// wraps it so that every successful append is published.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	return f.withEvents(ctx, config, res), nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Ledger:  repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, config.Google)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "sheet", config.Google.SheetName)
	return &BackendResult{
		Ledger:  cli,
		Cleanup: noCleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) *BackendResult {
	f.logger.InfoContext(ctx, "Initialized memory backend; records are lost on restart")
	return &BackendResult{
		Ledger:  memory.New(),
		Cleanup: noCleanup,
	}
}

// withEvents decorates res with an ExpenseService when AMQP is configured. A
// broker that cannot be reached at start-up only disables publishing.
func (f *DefaultFactory) withEvents(ctx context.Context, config Config, res *BackendResult) *BackendResult {
	if config.AMQPURL == "" {
		return res
	}

	client, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return res
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)

	svc := services.NewExpenseService(res.Ledger, client, client.Close, res.Cleanup)
	return &BackendResult{
		Ledger:     svc,
		Ready:      res.Ready,
		Cleanup:    svc.Close,
		Publishing: true,
	}
}

func noCleanup() error { return nil }
