package domain

import (
	"fmt"

	libvirtxml "libvirt.org/go/libvirtxml"
)

// InterfaceOptions controls the shared fields of a network interface entry.
type InterfaceOptions struct {
	ModelType  string // defaults to virtio
	MACAddress string // optional; generated by the hypervisor when empty
	BootOrder  uint   // optional; 0 means unset
	MTU        uint   // optional; 0 means unset
}

// AddNetworkInterface appends an interface attached to a named virtual
// network.
//
// Interfaces are appended as-is: duplicate MAC addresses and boot orders
// are not checked here, the hypervisor validates them at define time.
func (d *Definition) AddNetworkInterface(network string, opts InterfaceOptions) error {
	iface, err := d.newInterface(opts)
	if err != nil {
		return err
	}

	iface.Source = &libvirtxml.DomainInterfaceSource{
		Network: &libvirtxml.DomainInterfaceSourceNetwork{Network: network},
	}

	d.dom.Devices.Interfaces = append(d.dom.Devices.Interfaces, *iface)
	return nil
}

// AddBridgeInterface appends an interface attached to a host bridge device.
func (d *Definition) AddBridgeInterface(bridge string, opts InterfaceOptions) error {
	iface, err := d.newInterface(opts)
	if err != nil {
		return err
	}

	iface.Source = &libvirtxml.DomainInterfaceSource{
		Bridge: &libvirtxml.DomainInterfaceSourceBridge{Bridge: bridge},
	}

	d.dom.Devices.Interfaces = append(d.dom.Devices.Interfaces, *iface)
	return nil
}

func (d *Definition) newInterface(opts InterfaceOptions) (*libvirtxml.DomainInterface, error) {
	if d.defined {
		return nil, fmt.Errorf("%w: domain %s", ErrDefined, d.dom.Name)
	}

	model := opts.ModelType
	if model == "" {
		model = "virtio"
	}

	iface := &libvirtxml.DomainInterface{
		Model: &libvirtxml.DomainInterfaceModel{Type: model},
	}

	if opts.MTU > 0 {
		iface.MTU = &libvirtxml.DomainInterfaceMTU{Size: opts.MTU}
	}
	if opts.MACAddress != "" {
		iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: opts.MACAddress}
	}
	if opts.BootOrder > 0 {
		iface.Boot = &libvirtxml.DomainDeviceBoot{Order: opts.BootOrder}
	}

	return iface, nil
}
