// Package capability answers questions about hypervisor capabilities,
// most importantly which emulator binary backs a given domain-type,
// architecture and machine-type combination.
package capability

import (
	"errors"
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// ErrEmulatorNotFound is returned when the capabilities document has no
// usable emulator for the requested domain/arch/machine combination.
var ErrEmulatorNotFound = errors.New("emulator not found")

// HostArch returns the host CPU architecture reported by the capabilities
// document, or "" when the document does not carry one.
func HostArch(caps *libvirtxml.Caps) string {
	if caps.Host.CPU == nil {
		return ""
	}
	return caps.Host.CPU.Arch
}

// ResolveEmulator finds the emulator binary for the given domain type,
// architecture and machine type.
//
// Only hvm guest blocks are considered. Within the matching architecture a
// domain-type specific emulator wins over the architecture-level one; the
// machine type may be listed either under the domain-type block or at the
// architecture level.
func ResolveEmulator(caps *libvirtxml.Caps, domainType, archName, machineType string) (string, error) {
	for _, guest := range caps.Guests {
		if guest.OSType != "hvm" {
			continue
		}

		arch := guest.Arch
		if arch.Name != archName {
			continue
		}

		var domain *libvirtxml.CapsGuestDomain
		for i := range arch.Domains {
			if arch.Domains[i].Type == domainType {
				domain = &arch.Domains[i]
				break
			}
		}
		if domain == nil {
			continue
		}

		if !listsMachine(domain.Machines, machineType) && !listsMachine(arch.Machines, machineType) {
			continue
		}

		if domain.Emulator != "" {
			return domain.Emulator, nil
		}
		if arch.Emulator != "" {
			return arch.Emulator, nil
		}

		return "", fmt.Errorf("%w: guest architecture %s declares no emulator for domain type %s",
			ErrEmulatorNotFound, archName, domainType)
	}

	return "", fmt.Errorf("%w: no hvm guest matches domain type %s, arch %s, machine %s",
		ErrEmulatorNotFound, domainType, archName, machineType)
}

func listsMachine(machines []libvirtxml.CapsGuestMachine, name string) bool {
	for _, m := range machines {
		if m.Name == name {
			return true
		}
	}
	return false
}
