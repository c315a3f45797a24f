package machinebind

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"slices"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/errgroup"
)

// Component names used as keys in DiagnosticInfo.
const (
	ComponentUsername    = "username"
	ComponentNetwork     = "network"
	ComponentMachineID   = "machine-id"
	ComponentDisk        = "disk"
	ComponentCPU         = "cpu"
	ComponentMotherboard = "motherboard"
)

// biosFirmwareMessage is the OEM placeholder some firmware reports instead
// of a real serial number.
const biosFirmwareMessage = "To be filled by O.E.M."

// unknownValue replaces CPU description parts the host does not report.
const unknownValue = "unknown"

// DiagnosticInfo contains information about what was collected during host observation.
// Use [Provider.Diagnostics] to retrieve it after creating an identity.
type DiagnosticInfo struct {
	Errors    map[string]error // Component names that failed with their errors
	Collected []string         // Component names that were successfully collected
}

// Observer gathers one snapshot of host observables. Substitute a fixed
// implementation to make identity creation deterministic in tests.
type Observer interface {
	Observe(ctx context.Context) (Observables, *DiagnosticInfo, error)
}

// ObserverFunc adapts a plain function to the [Observer] interface.
type ObserverFunc func(ctx context.Context) (Observables, error)

// Observe calls f and reports every non-empty field as collected.
func (f ObserverFunc) Observe(ctx context.Context) (Observables, *DiagnosticInfo, error) {
	obs, err := f(ctx)
	if err != nil {
		return Observables{}, nil, err
	}

	diag := &DiagnosticInfo{Errors: make(map[string]error)}
	for component, present := range map[string]bool{
		ComponentUsername:    obs.Username != "",
		ComponentNetwork:     len(obs.NetworkAddresses) > 0,
		ComponentMachineID:   obs.MachineID != "",
		ComponentDisk:        len(obs.StorageIDs) > 0,
		ComponentCPU:         obs.CPUDescription != "",
		ComponentMotherboard: obs.MotherboardSerial != "",
	} {
		if present {
			diag.Collected = append(diag.Collected, component)
		}
	}
	slices.Sort(diag.Collected)

	return obs, diag, nil
}

// Platform is the OS-specific capability used for the signals that need a
// different mechanism on every operating system.
type Platform interface {
	// PlatformID returns the OS-level stable machine identifier.
	PlatformID(ctx context.Context) (string, error)
	// BoardSerial returns the motherboard or system serial number.
	BoardSerial(ctx context.Context) (string, error)
}

// HostObserver collects observables from the live host. All sources are
// queried concurrently; only network enumeration is mandatory.
type HostObserver struct {
	platform Platform
	logger   *slog.Logger

	// Source hooks, replaced in tests.
	username       func() (string, error)
	networkAddrs   func(*slog.Logger) ([]string, error)
	storageIDs     func(context.Context) ([]string, error)
	cpuDescription func(context.Context) (string, error)
}

// NewHostObserver returns an observer that runs platform commands through
// executor. A nil executor uses real system commands; a nil logger disables logging.
func NewHostObserver(executor CommandExecutor, logger *slog.Logger) *HostObserver {
	if executor == nil {
		executor = &defaultCommandExecutor{Timeout: defaultTimeout}
	}

	return &HostObserver{
		platform:       newPlatform(executor, logger),
		logger:         logger,
		username:       currentUsername,
		networkAddrs:   collectNetworkAddresses,
		storageIDs:     storageDeviceNames,
		cpuDescription: describeCPU,
	}
}

// Observe implements [Observer].
func (h *HostObserver) Observe(ctx context.Context) (Observables, *DiagnosticInfo, error) {
	var (
		obs  Observables
		mu   sync.Mutex
		diag = &DiagnosticInfo{Errors: make(map[string]error)}
	)

	record := func(component string, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			diag.Errors[component] = &ComponentError{Component: component, Err: err}
			if h.logger != nil {
				h.logger.Warn("component failed", "component", component, "error", err)
			}

			return
		}

		diag.Collected = append(diag.Collected, component)
		if h.logger != nil {
			h.logger.Debug("component collected", "component", component)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addrs, err := h.networkAddrs(h.logger)
		if err != nil {
			record(ComponentNetwork, err)

			return &HostQueryError{Source: ComponentNetwork, Err: err}
		}
		obs.NetworkAddresses = addrs
		record(ComponentNetwork, nonEmptySlice(addrs))

		return nil
	})

	g.Go(func() error {
		name, err := h.username()
		obs.Username = valueOrEmpty(name, err)
		record(ComponentUsername, nonEmptyValue(name, err))

		return nil
	})

	g.Go(func() error {
		id, err := h.platform.PlatformID(gctx)
		obs.MachineID = valueOrEmpty(id, err)
		record(ComponentMachineID, nonEmptyValue(id, err))

		return nil
	})

	g.Go(func() error {
		serial, err := h.platform.BoardSerial(gctx)
		obs.MotherboardSerial = valueOrEmpty(serial, err)
		record(ComponentMotherboard, nonEmptyValue(serial, err))

		return nil
	})

	g.Go(func() error {
		ids, err := h.storageIDs(gctx)
		if err == nil {
			obs.StorageIDs = ids
		}
		if err == nil {
			err = nonEmptySlice(ids)
		}
		record(ComponentDisk, err)

		return nil
	})

	g.Go(func() error {
		desc, err := h.cpuDescription(gctx)
		obs.CPUDescription = desc
		record(ComponentCPU, err)

		return nil
	})

	err := g.Wait()
	slices.Sort(diag.Collected)
	if err != nil {
		return Observables{}, diag, err
	}

	return obs, diag, nil
}

// valueOrEmpty drops the value of a failed query.
func valueOrEmpty(value string, err error) string {
	if err != nil {
		return ""
	}

	return strings.TrimSpace(value)
}

// nonEmptyValue turns a successful but empty result into ErrEmptyValue.
func nonEmptyValue(value string, err error) error {
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return ErrEmptyValue
	}

	return nil
}

func nonEmptySlice(values []string) error {
	if len(values) == 0 {
		return ErrEmptyValue
	}

	return nil
}

// currentUsername returns the OS user name, falling back to the environment.
func currentUsername() (string, error) {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}

	for _, key := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name, nil
		}
	}

	return "", fmt.Errorf("user name: %w", ErrNotFound)
}

// storageDeviceNames lists the non-empty device names of mounted partitions
// in the order the OS reports them. Duplicates are kept.
func storageDeviceNames(ctx context.Context) ([]string, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if p.Device != "" {
			names = append(names, p.Device)
		}
	}

	return names, nil
}

// describeCPU combines brand, vendor and logical core count. Parts the host
// does not report are replaced with "unknown", so the result is never empty.
func describeCPU(ctx context.Context) (string, error) {
	brand, vendor := unknownValue, unknownValue

	infos, infoErr := cpu.InfoWithContext(ctx)
	if infoErr == nil && len(infos) > 0 {
		if infos[0].ModelName != "" {
			brand = infos[0].ModelName
		}
		if infos[0].VendorID != "" {
			vendor = infos[0].VendorID
		}
	}

	cores, countErr := cpu.CountsWithContext(ctx, true)
	if countErr != nil {
		cores = 0
	}

	desc := formatCPUDescription(brand, vendor, cores)
	if infoErr != nil {
		return desc, fmt.Errorf("cpu info: %w", infoErr)
	}

	return desc, countErr
}

func formatCPUDescription(brand, vendor string, cores int) string {
	return fmt.Sprintf("%s_%s_%dcores", strings.TrimSpace(brand), strings.TrimSpace(vendor), cores)
}
