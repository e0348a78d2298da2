package domain

import (
	"errors"
	"fmt"
	"strings"

	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/anvil/internal/naming"
	"github.com/jbweber/anvil/internal/storage"
)

// Bus is a disk attachment bus type.
type Bus string

const (
	BusVirtio Bus = "virtio"
	BusSCSI   Bus = "scsi"
)

var (
	// ErrUnsupportedBus is returned for a bus outside the supported set.
	ErrUnsupportedBus = errors.New("unsupported bus")

	// ErrUnsupportedVolumeType is returned when the volume's pool backend
	// has no disk attachment mapping.
	ErrUnsupportedVolumeType = errors.New("unsupported volume type")

	// ErrBusExhausted is returned when every device name on a bus is taken.
	ErrBusExhausted = errors.New("bus exhausted")
)

type busProperties struct {
	devPrefix  string
	maxDevices int
}

var busTable = map[Bus]busProperties{
	// https://rwmj.wordpress.com/2010/12/22/whats-the-maximum-number-of-virtio-blk-disks/
	BusVirtio: {devPrefix: "vd", maxDevices: 32},
	// Technically more, but https://rwmj.wordpress.com/2017/04/25/how-many-disks-can-you-add-to-a-virtual-linux-machine/
	BusSCSI: {devPrefix: "sd", maxDevices: 1024},
}

// DiskOptions controls how a volume is attached as a disk.
type DiskOptions struct {
	Bus       Bus
	Cache     string // required cache mode, e.g. none, writeback
	Discard   string // optional discard mode, e.g. unmap
	BootOrder uint   // optional; 0 means unset
}

// AddDisk appends a disk entry referencing vol to the devices container,
// assigning the lowest free device name on the requested bus and, for SCSI,
// a free (controller, bus, target, unit) address.
func (d *Definition) AddDisk(vol *storage.Volume, opts DiskOptions) error {
	if d.defined {
		return fmt.Errorf("%w: domain %s", ErrDefined, d.dom.Name)
	}

	props, ok := busTable[opts.Bus]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedBus, opts.Bus)
	}

	disk := libvirtxml.DomainDisk{Device: "disk"}

	switch vol.PoolType {
	case storage.PoolTypeDir, storage.PoolTypeLogical:
		disk.Source = &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   vol.PoolName,
				Volume: vol.Name,
			},
		}

	case storage.PoolTypeRBD:
		ns, err := vol.NetworkSource()
		if err != nil {
			return err
		}

		src := &libvirtxml.DomainDiskSourceNetwork{
			Protocol: ns.Protocol,
			Name:     ns.Path,
		}
		for _, h := range ns.Hosts {
			src.Hosts = append(src.Hosts, libvirtxml.DomainDiskSourceHost{
				Name: h.Name,
				Port: h.Port,
			})
		}
		disk.Source = &libvirtxml.DomainDiskSource{Network: src}

		if ns.Auth != nil {
			disk.Auth = &libvirtxml.DomainDiskAuth{
				Username: ns.Auth.Username,
				Secret: &libvirtxml.DomainDiskSecret{
					Type: "ceph",
					UUID: ns.Auth.SecretUUID,
				},
			}
		}

	default:
		return fmt.Errorf("%w: pool %s is of type %s", ErrUnsupportedVolumeType, vol.PoolName, vol.PoolType)
	}

	dev, err := d.nextDeviceName(opts.Bus, props)
	if err != nil {
		return err
	}

	disk.Target = &libvirtxml.DomainDiskTarget{
		Dev: dev,
		Bus: string(opts.Bus),
	}

	disk.Driver = &libvirtxml.DomainDiskDriver{
		Name:    "qemu",
		Type:    "raw",
		Cache:   opts.Cache,
		Discard: opts.Discard,
	}

	if opts.BootOrder > 0 {
		disk.Boot = &libvirtxml.DomainDeviceBoot{Order: opts.BootOrder}
	}

	if opts.Bus == BusSCSI {
		addr, err := d.allocateSCSIAddress()
		if err != nil {
			return err
		}
		disk.Address = &libvirtxml.DomainAddress{
			Drive: &libvirtxml.DomainAddressDrive{
				Controller: &addr.controller,
				Bus:        &addr.bus,
				Target:     &addr.target,
				Unit:       &addr.unit,
			},
		}
	}

	d.dom.Devices.Disks = append(d.dom.Devices.Disks, disk)
	return nil
}

// nextDeviceName picks the lowest unused device name on the bus, scanning
// every disk already attached to it.
func (d *Definition) nextDeviceName(bus Bus, props busProperties) (string, error) {
	used := make(map[string]bool)
	for _, disk := range d.dom.Devices.Disks {
		if disk.Target == nil || disk.Target.Bus != string(bus) {
			continue
		}
		if !strings.HasPrefix(disk.Target.Dev, props.devPrefix) {
			continue
		}
		used[disk.Target.Dev] = true
	}

	for i := 0; i < props.maxDevices; i++ {
		dev := props.devPrefix + naming.DriveName(i)
		if !used[dev] {
			return dev, nil
		}
	}

	return "", fmt.Errorf("%w: all %d disk devices on the %s bus are in use", ErrBusExhausted, props.maxDevices, bus)
}
