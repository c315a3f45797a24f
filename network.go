package machinebind

import (
	"log/slog"
	"net"
	"strings"
)

// virtualInterfacePrefixes lists interface name prefixes that represent
// virtual, VPN, bridge, or ephemeral interfaces. These are excluded because
// they change when software is installed/removed or connections are started/stopped.
var virtualInterfacePrefixes = []string{
	// VPN and tunnel interfaces
	"utun", "tun", "tap", "ipsec", "ppp",
	// Docker and container bridges
	"docker", "br-", "veth",
	// Virtual bridges and switches
	"virbr", "vnet", "vmnet",
	// Thunderbolt bridge (changes with docking state)
	"bridge",
	// Loopback variants
	"lo",
	// WireGuard
	"wg",
	// Parallels / VirtualBox / VMware
	"vnic", "vboxnet",
}

// networkInterfaces is replaced in tests.
var networkInterfaces = net.Interfaces

// collectNetworkAddresses returns the hardware addresses of physical network
// interfaces in enumeration order. Failure to enumerate interfaces at all is
// the one mandatory host signal, so the error is returned to the caller.
func collectNetworkAddresses(logger *slog.Logger) ([]string, error) {
	interfaces, err := networkInterfaces()
	if err != nil {
		return nil, err
	}

	return filterHardwareAddresses(interfaces, logger), nil
}

// filterHardwareAddresses drops loopback, down, address-less and virtual
// interfaces and returns the remaining hardware addresses.
func filterHardwareAddresses(interfaces []net.Interface, logger *slog.Logger) []string {
	var addrs []string

	for _, i := range interfaces {
		if i.Flags&net.FlagLoopback != 0 || len(i.HardwareAddr) == 0 {
			continue
		}

		// Interfaces that are not up may be transient.
		if i.Flags&net.FlagUp == 0 {
			if logger != nil {
				logger.Debug("skipping interface (not up)", "interface", i.Name)
			}

			continue
		}

		if isVirtualInterface(i.Name) {
			if logger != nil {
				logger.Debug("skipping virtual interface", "interface", i.Name)
			}

			continue
		}

		if logger != nil {
			logger.Debug("including interface", "interface", i.Name, "mac", i.HardwareAddr.String())
		}

		addrs = append(addrs, i.HardwareAddr.String())
	}

	return addrs
}

// isVirtualInterface returns true if the interface name matches a known
// virtual, VPN, or bridge prefix.
func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}
