package domain

import (
	"errors"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/anvil/internal/capability"
)

var (
	// ErrInvalidBaseXML is returned when the base template is not a
	// well-formed document with a <domain> root.
	ErrInvalidBaseXML = errors.New("invalid base XML")

	// ErrArchUnresolved is returned when no architecture was requested and
	// the host capabilities do not report one.
	ErrArchUnresolved = errors.New("architecture unresolved")

	// ErrDefined is returned by any operation invoked after Define.
	ErrDefined = errors.New("definition already submitted")
)

// Client is the subset of go-libvirt used by the definition builder.
type Client interface {
	ConnectGetCapabilities() (string, error)
	DomainDefineXML(XML string) (libvirt.Domain, error)
}

// Spec carries the runtime parameters applied on top of the base template.
type Spec struct {
	Name        string
	MemoryBytes uint64
	VCPUs       uint
	BaseXML     string
	DomainType  string // e.g. kvm, qemu
	Machine     string // e.g. pc, virt
	UUID        string // optional; overrides any uuid in the base template
	ArchName    string // optional; defaults to the host architecture
	CPUModel    string // optional; empty means host passthrough
}

// Definition owns an in-progress domain document. It is created by New,
// mutated by the Add* methods and submitted exactly once with Define.
type Definition struct {
	client  Client
	dom     *libvirtxml.Domain
	defined bool
}

// New parses the base template, applies identity and resource parameters
// and resolves the emulator binary from the hypervisor capabilities.
func New(client Client, spec Spec) (*Definition, error) {
	dom := &libvirtxml.Domain{}
	if err := dom.Unmarshal(spec.BaseXML); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseXML, err)
	}

	capsXML, err := client.ConnectGetCapabilities()
	if err != nil {
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}

	caps := &libvirtxml.Caps{}
	if err := caps.Unmarshal(capsXML); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}

	dom.Type = spec.DomainType

	arch := spec.ArchName
	if arch == "" {
		arch = capability.HostArch(caps)
	}
	if arch == "" {
		return nil, fmt.Errorf("%w: none requested and host capabilities report no CPU architecture", ErrArchUnresolved)
	}

	if spec.UUID != "" {
		dom.UUID = spec.UUID
	}

	if dom.OS == nil {
		dom.OS = &libvirtxml.DomainOS{}
	}
	dom.OS.Type = &libvirtxml.DomainOSType{
		Arch:    arch,
		Machine: spec.Machine,
		Type:    "hvm",
	}

	// A CPU block already present in the base template wins when no model
	// is requested; an explicit model always replaces it.
	if spec.CPUModel == "" {
		if dom.CPU == nil {
			dom.CPU = &libvirtxml.DomainCPU{
				Mode:       "host-passthrough",
				Check:      "none",
				Migratable: "on",
			}
		}
	} else {
		dom.CPU = &libvirtxml.DomainCPU{
			Mode:  "custom",
			Match: "exact",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
				Value:    spec.CPUModel,
			},
		}
	}

	dom.Name = spec.Name
	dom.Memory = &libvirtxml.DomainMemory{
		Unit:  "bytes",
		Value: uint(spec.MemoryBytes),
	}
	dom.CurrentMemory = nil
	dom.VCPU = &libvirtxml.DomainVCPU{
		Placement: "static",
		Value:     spec.VCPUs,
	}

	if dom.Devices == nil {
		dom.Devices = &libvirtxml.DomainDeviceList{}
	}

	emulator, err := capability.ResolveEmulator(caps, spec.DomainType, arch, spec.Machine)
	if err != nil {
		return nil, err
	}
	dom.Devices.Emulator = emulator

	return &Definition{client: client, dom: dom}, nil
}

// Name returns the domain name held by the document.
func (d *Definition) Name() string {
	return d.dom.Name
}

// MemoryBytes returns the memory allocation held by the document.
func (d *Definition) MemoryBytes() uint64 {
	if d.dom.Memory == nil {
		return 0
	}
	return uint64(d.dom.Memory.Value)
}

// VCPUCount returns the vCPU count held by the document.
func (d *Definition) VCPUCount() uint {
	if d.dom.VCPU == nil {
		return 0
	}
	return d.dom.VCPU.Value
}

// XML serializes the current document.
func (d *Definition) XML() (string, error) {
	xml, err := d.dom.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain %s: %w", d.dom.Name, err)
	}
	return xml, nil
}

// Define serializes the document and submits it to the hypervisor. The
// definition becomes terminal: any later mutation or second Define fails
// with ErrDefined.
func (d *Definition) Define() error {
	if d.defined {
		return fmt.Errorf("%w: domain %s", ErrDefined, d.dom.Name)
	}

	xml, err := d.XML()
	if err != nil {
		return err
	}

	if _, err := d.client.DomainDefineXML(xml); err != nil {
		return fmt.Errorf("failed to define domain %s: %w", d.dom.Name, err)
	}

	d.defined = true
	return nil
}
