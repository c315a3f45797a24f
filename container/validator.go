package container

import (
	"context"
	"log/slog"

	"github.com/slashdevops/machinebind"
)

// HostMatcher checks identities against the current host.
// [*machinebind.Provider] implements it.
type HostMatcher interface {
	MatchesHost(ctx context.Context, id *machinebind.Identity) (bool, error)
	MatchesDigest(ctx context.Context, digest string, version uint8) (bool, error)
}

// Validator checks whether a container, or a bare digest, belongs to the
// host it runs on.
type Validator struct {
	host   HostMatcher
	logger *slog.Logger
}

// NewValidator creates a Validator that checks containers against host.
func NewValidator(host HostMatcher) *Validator {
	return &Validator{host: host}
}

// WithLogger sets an optional [*slog.Logger]. A nil logger disables logging.
func (v *Validator) WithLogger(logger *slog.Logger) *Validator {
	v.logger = logger

	return v
}

// ValidateAgainstHost reports whether the identity embedded in data matches
// the current host. Structural failures are returned exactly as [Decode]
// would return them; a host mismatch is false with a nil error.
func (v *Validator) ValidateAgainstHost(ctx context.Context, data []byte) (bool, error) {
	id, err := DecodeIdentity(data)
	if err != nil {
		return false, err
	}

	match, err := v.host.MatchesHost(ctx, id)
	if err != nil {
		return false, err
	}

	if v.logger != nil {
		v.logger.Debug("container validated", "version", id.Version(), "digest", id.Digest(), "match", match)
	}

	return match, nil
}

// ValidateAgainstDigest reports whether digest equals the digest of the
// current host's identity for version.
func (v *Validator) ValidateAgainstDigest(ctx context.Context, version uint8, digest string) (bool, error) {
	match, err := v.host.MatchesDigest(ctx, digest, version)
	if err != nil {
		return false, err
	}

	if v.logger != nil {
		v.logger.Debug("digest validated", "version", version, "match", match)
	}

	return match, nil
}
