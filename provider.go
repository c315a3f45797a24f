package machinebind

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// defaultTimeout is the default timeout for system command execution.
const defaultTimeout = 5 * time.Second

// Provider creates and checks machine identities for the current host.
//
// Unlike an [Identity], a Provider is never cached: every call observes the
// live host again, so a check always reflects the machine it runs on.
// Provider methods are safe for concurrent use after configuration is complete.
type Provider struct {
	commandExecutor CommandExecutor
	observer        Observer
	logger          *slog.Logger
	diagnostics     *DiagnosticInfo
	timeout         time.Duration
	mu              sync.Mutex
}

// New creates a new Provider with default settings.
// The provider observes the real host through system commands by default.
func New() *Provider {
	return &Provider{
		timeout: defaultTimeout,
	}
}

// WithExecutor sets a custom [CommandExecutor], enabling deterministic testing
// without real system commands.
func (p *Provider) WithExecutor(executor CommandExecutor) *Provider {
	p.commandExecutor = executor

	return p
}

// WithObserver replaces host observation entirely. When set, the executor
// and timeout are not used.
func (p *Provider) WithObserver(observer Observer) *Provider {
	p.observer = observer

	return p
}

// WithTimeout sets the per-command timeout for the default executor.
func (p *Provider) WithTimeout(timeout time.Duration) *Provider {
	p.timeout = timeout

	return p
}

// WithLogger sets an optional [*slog.Logger] for observability.
// A nil logger (the default) disables all logging.
func (p *Provider) WithLogger(logger *slog.Logger) *Provider {
	p.logger = logger

	return p
}

// Identity observes the host and returns a fresh identity tagged with version.
// It fails with a [*HostQueryError] only when network enumeration is
// impossible; any other missing signal is left empty and reported in
// [Provider.Diagnostics].
func (p *Provider) Identity(ctx context.Context, version uint8) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logDebug("observing host", "platform", runtime.GOOS, "version", version)

	obs, diag, err := p.resolveObserver().Observe(ctx)
	p.diagnostics = diag
	if err != nil {
		p.logWarn("host observation failed", "error", err)

		return nil, err
	}

	id := NewIdentity(version, obs)

	if diag != nil {
		p.logInfo("identity created",
			"digest", id.Digest(),
			"collected", diag.Collected,
			"errors_count", len(diag.Errors),
		)
	}

	return id, nil
}

// MatchesHost recomputes the identity of the current host using the version
// embedded in id and reports whether the two are structurally equal.
func (p *Provider) MatchesHost(ctx context.Context, id *Identity) (bool, error) {
	if id == nil {
		return false, nil
	}

	current, err := p.Identity(ctx, id.Version())
	if err != nil {
		return false, err
	}

	match := current.Equal(id)
	p.logDebug("host match checked", "match", match, "expected", id.Digest(), "current", current.Digest())

	return match, nil
}

// MatchesDigest recomputes the identity of the current host for version and
// compares only the digest.
func (p *Provider) MatchesDigest(ctx context.Context, digest string, version uint8) (bool, error) {
	current, err := p.Identity(ctx, version)
	if err != nil {
		return false, err
	}

	return current.MatchesDigest(digest), nil
}

// Diagnostics returns information about which host sources were collected
// and which ones failed during the last observation.
// Returns nil if no identity has been created yet.
func (p *Provider) Diagnostics() *DiagnosticInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.diagnostics
}

// resolveObserver returns the configured observer or a host observer built
// from the executor and logger settings.
func (p *Provider) resolveObserver() Observer {
	if p.observer != nil {
		return p.observer
	}

	executor := p.commandExecutor
	if executor == nil {
		executor = &defaultCommandExecutor{Timeout: p.timeout}
	}

	return NewHostObserver(executor, p.logger)
}

// logDebug logs at debug level if a logger is configured.
func (p *Provider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

// logInfo logs at info level if a logger is configured.
func (p *Provider) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

// logWarn logs at warn level if a logger is configured.
func (p *Provider) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
