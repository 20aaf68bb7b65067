package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Timwood0x10/StyleAgent/config"
	"github.com/Timwood0x10/StyleAgent/errors"
	"github.com/Timwood0x10/StyleAgent/llm"
	"github.com/Timwood0x10/StyleAgent/logging"
	"github.com/Timwood0x10/StyleAgent/protocol"
	"github.com/Timwood0x10/StyleAgent/ratelimit"
	"github.com/Timwood0x10/StyleAgent/registry"
	"github.com/Timwood0x10/StyleAgent/retry"
	"github.com/Timwood0x10/StyleAgent/storage"
)

// ResourceLLM is the rate limiter bucket guarding completion calls.
const ResourceLLM = "llm"

// Runtime bundles the shared infrastructure every agent needs: the
// mailbox fabric, task registry, store, completion provider and the
// guards around it. It is constructed once and passed by handle; there
// are no package-level singletons.
type Runtime struct {
	Fabric   *protocol.Fabric
	Budgeter *protocol.Budgeter
	Registry *registry.TaskRegistry
	Store    storage.Store
	Provider llm.Provider
	Retry    *retry.Handler
	Breaker  *retry.CircuitBreaker
	Limiter  ratelimit.Limiter
	Logger   *logging.Logger

	// CollectTimeout bounds the leader's fan-in wait.
	CollectTimeout time.Duration

	// ValidationLevel applies to worker results before aggregation.
	ValidationLevel ValidationLevel
}

// NewRuntime builds a runtime from configuration.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.New()

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case "bleve":
		store, err = storage.NewBleveStore(storage.BleveConfig{BasePath: cfg.Storage.Path})
		if err != nil {
			return nil, fmt.Errorf("bleve store: %w", err)
		}
	default:
		store = storage.NewMemoryStore()
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		ml := ratelimit.NewMemoryLimiter()
		ml.SetCapacity(ResourceLLM, cfg.RateLimit.RequestsPerMinute, time.Minute)
		limiter = ml
	}

	return &Runtime{
		Fabric:          protocol.NewFabric(cfg.Fabric.Fabric(), logger),
		Budgeter:        protocol.NewBudgeter(cfg.Agent.DefaultTokenLimit),
		Registry:        registry.NewTaskRegistry(store, logger),
		Store:           store,
		Provider:        provider,
		Retry:           retry.NewHandler(cfg.Retry.Handler(), logger),
		Breaker:         retry.NewCircuitBreaker(ResourceLLM, cfg.Breaker.Breaker(), logger),
		Limiter:         limiter,
		Logger:          logger,
		CollectTimeout:  cfg.Agent.CollectTimeout.Std(),
		ValidationLevel: ParseValidationLevel(cfg.Agent.ValidationLevel),
	}, nil
}

// NewTestRuntime builds a runtime on a mock provider and an in-memory
// store, with no rate limiting. Intended for tests and demos.
func NewTestRuntime(provider llm.Provider) *Runtime {
	logger := logging.New()
	store := storage.NewMemoryStore()
	if provider == nil {
		provider = llm.NewMockProvider()
	}
	return &Runtime{
		Fabric:          protocol.NewFabric(protocol.DefaultConfig(), logger),
		Budgeter:        protocol.NewBudgeter(0),
		Registry:        registry.NewTaskRegistry(store, logger),
		Store:           store,
		Provider:        provider,
		Retry:           retry.NewHandler(retry.DefaultConfig(), logger),
		Breaker:         retry.NewCircuitBreaker(ResourceLLM, retry.DefaultBreakerConfig(), logger),
		Logger:          logger,
		CollectTimeout:  5 * time.Second,
		ValidationLevel: LevelNormal,
	}
}

// InvokeGuarded runs one completion call under the rate limiter,
// circuit breaker and retry handler. The breaker is consulted once
// before the retried call and records one outcome for the whole
// attempt sequence; when it is open the call fails fast without
// touching the provider.
func (rt *Runtime) InvokeGuarded(ctx context.Context, key, prompt, system string) (string, error) {
	if rt.Limiter != nil {
		if err := rt.Limiter.Acquire(ctx, ResourceLLM); err != nil {
			return "", err
		}
		defer rt.Limiter.Release(ResourceLLM)
	}

	if !rt.Breaker.Allow() {
		return "", errors.New(errors.KindModelFailure, "circuit breaker open for "+ResourceLLM)
	}

	var text string
	err := rt.Retry.Do(key, func() error {
		t, err := rt.Provider.Invoke(ctx, prompt, system)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		rt.Breaker.RecordFailure()
		return "", err
	}
	rt.Breaker.RecordSuccess()
	return text, nil
}

// Close releases the runtime's resources.
func (rt *Runtime) Close() error {
	if rt.Limiter != nil {
		rt.Limiter.Close()
	}
	if rt.Store != nil {
		return rt.Store.Close()
	}
	return nil
}
