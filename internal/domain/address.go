package domain

import (
	"errors"
	"fmt"

	libvirtxml "libvirt.org/go/libvirtxml"
)

const (
	scsiMaxControllers = 32
	scsiMaxTargets     = 256
	scsiMaxUnits       = 16384
)

var (
	// ErrSCSIAddressesExhausted is returned when every unit on every
	// allowed controller is occupied.
	ErrSCSIAddressesExhausted = errors.New("scsi address space exhausted")

	// ErrIncompleteAddress is returned when a SCSI disk in the document
	// lacks a complete drive address. This indicates a corrupted or
	// externally edited document.
	ErrIncompleteAddress = errors.New("scsi disk has incomplete address")
)

type scsiAddress struct {
	controller uint
	bus        uint
	target     uint
	unit       uint
}

// usedSCSIAddresses builds the occupancy index controller → bus → target →
// units from every SCSI disk currently in the document.
func (d *Definition) usedSCSIAddresses() (map[uint]map[uint]map[uint]map[uint]bool, error) {
	used := make(map[uint]map[uint]map[uint]map[uint]bool)

	for _, disk := range d.dom.Devices.Disks {
		if disk.Target == nil || disk.Target.Bus != "scsi" {
			continue
		}

		addr := disk.Address
		if addr == nil || addr.Drive == nil {
			return nil, fmt.Errorf("%w: disk %s has no drive address", ErrIncompleteAddress, diskDev(disk))
		}
		drive := addr.Drive
		if drive.Controller == nil || drive.Bus == nil || drive.Target == nil || drive.Unit == nil {
			return nil, fmt.Errorf("%w: disk %s", ErrIncompleteAddress, diskDev(disk))
		}

		controller, bus, target, unit := *drive.Controller, *drive.Bus, *drive.Target, *drive.Unit

		if used[controller] == nil {
			used[controller] = make(map[uint]map[uint]map[uint]bool)
		}
		if used[controller][bus] == nil {
			used[controller][bus] = make(map[uint]map[uint]bool)
		}
		if used[controller][bus][target] == nil {
			used[controller][bus][target] = make(map[uint]bool)
		}
		used[controller][bus][target][unit] = true
	}

	return used, nil
}

// allocateSCSIAddress returns the first free (controller, bus, target,
// unit) tuple, walking existing virtio-scsi controllers in document order
// and creating a new controller when none has room. The bus index is always
// 0.
func (d *Definition) allocateSCSIAddress() (scsiAddress, error) {
	used, err := d.usedSCSIAddresses()
	if err != nil {
		return scsiAddress{}, err
	}

	var controllers []libvirtxml.DomainController
	for _, c := range d.dom.Devices.Controllers {
		if c.Type == "scsi" && c.Model == "virtio-scsi" {
			controllers = append(controllers, c)
		}
	}

	const bus = uint(0)

	for _, c := range controllers {
		controller := uint(0)
		if c.Index != nil {
			controller = *c.Index
		}

		for target := uint(0); target < scsiMaxTargets; target++ {
			for unit := uint(0); unit < scsiMaxUnits; unit++ {
				if !used[controller][bus][target][unit] {
					return scsiAddress{controller: controller, bus: bus, target: target, unit: unit}, nil
				}
			}
		}
	}

	// No room on any existing controller.
	if len(controllers) >= scsiMaxControllers {
		return scsiAddress{}, fmt.Errorf("%w: all %d controllers are full", ErrSCSIAddressesExhausted, scsiMaxControllers)
	}

	index := uint(len(controllers))
	d.dom.Devices.Controllers = append(d.dom.Devices.Controllers, libvirtxml.DomainController{
		Type:  "scsi",
		Model: "virtio-scsi",
		Index: &index,
	})

	return scsiAddress{controller: index, bus: bus, target: 0, unit: 0}, nil
}

func diskDev(disk libvirtxml.DomainDisk) string {
	if disk.Target == nil || disk.Target.Dev == "" {
		return "<unnamed>"
	}
	return disk.Target.Dev
}
