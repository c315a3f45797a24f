// Package machinebind derives machine identities used to bind packaged
// content to the host it was produced for.
//
// # Overview
//
// A [Provider] observes the host (network hardware addresses, the platform
// machine identifier, storage device names, a CPU description, the
// motherboard serial number and the current user name) and reduces the
// observations to an [Identity]: the raw fields plus a SHA-256 digest,
// tagged with a caller-supplied format version.
//
// The identity is a local heuristic, not a credential. Several weak signals
// are combined so that a single unavailable signal does not prevent an
// identity from being produced.
//
// # Quick Start
//
//	provider := machinebind.New()
//
//	id, err := provider.Identity(ctx, 1)
//	if err != nil {
//		return err
//	}
//
//	ok, err := provider.MatchesHost(ctx, id)
//
// # Matching
//
// [Provider.MatchesHost] observes the host again using the identity's own
// version and compares every field. [Provider.MatchesDigest] compares only
// the digest, which is what callers holding a stored digest string need.
// A mismatch is reported as false, never as an error.
//
// # Absent Signals
//
// Only network interface enumeration is mandatory; when it fails,
// [Provider.Identity] returns a [*HostQueryError]. Every other source that
// cannot be read is left empty, contributes nothing to the digest, and is
// listed in [Provider.Diagnostics].
//
// # Digest
//
// The digest covers, in this order: version, network addresses, machine id
// (if present), storage ids, CPU description, and motherboard serial (if
// present). Multi-valued fields keep their observed order. The user name is
// carried in the identity and compared by [Identity.Equal] but is not hashed.
//
// # Testing
//
// Inject a fixed [Observer] through [Provider.WithObserver] to bypass the
// host entirely, or a [CommandExecutor] through [Provider.WithExecutor] to
// replace the platform commands with test doubles:
//
//	provider := machinebind.New().WithObserver(machinebind.ObserverFunc(
//		func(context.Context) (machinebind.Observables, error) {
//			return fixed, nil
//		}))
//
// # Platform Support
//
// Platform-specific signals come from a [Platform] implementation selected
// at build time: /etc/machine-id, DMI and dmidecode on Linux; ioreg and
// system_profiler on macOS; the registry MachineGuid and wmic / PowerShell
// on Windows. Other systems report both as absent.
//
// # Related Packages
//
// Package container frames an identity and a payload into a binary
// container and validates it. Package erase overwrites and removes files.
// Package archive turns directory trees into payload bytes and back, and
// package seal optionally encrypts those bytes under a passphrase.
package machinebind
