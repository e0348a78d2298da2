package vm

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/jbweber/anvil/internal/cloudinit"
	"github.com/jbweber/anvil/internal/config"
	"github.com/jbweber/anvil/internal/domain"
	"github.com/jbweber/anvil/internal/naming"
	"github.com/jbweber/anvil/internal/storage"
)

// Client is the hypervisor connection surface instance creation needs.
// *libvirt.Libvirt satisfies it directly.
type Client interface {
	domain.Client
	storage.Client
}

// DiskRequest is one --disk argument: a disk preset name, a size, and
// per-disk overrides. Zero-valued override fields fall back to the preset.
type DiskRequest struct {
	Preset    string
	SizeBytes uint64

	Pool       string
	Bus        string
	Cache      string
	Source     string
	SourcePool string
	BootOrder  uint
}

// NICRequest is one --nic argument: an interface preset name plus
// overrides.
type NICRequest struct {
	Preset string

	ModelType  string
	Network    string
	Bridge     string
	MACAddress string
	BootOrder  uint
	MTU        uint
}

// SeedRequest asks for a cloud-init NoCloud seed disk built from the given
// file bodies and attached via a volume-type disk preset.
type SeedRequest struct {
	Preset string

	Pool  string
	Bus   string
	Cache string

	UserData      string
	NetworkConfig string
}

// CreateRequest carries everything needed to create one instance.
type CreateRequest struct {
	Name       string
	InstanceID string
	// MemoryBytes and VCPUs size the instance.
	MemoryBytes uint64
	VCPUs       uint

	DomainPreset string
	DomainType   string
	CPUModel     string
	ArchName     string
	MachineType  string

	Disks []DiskRequest
	NICs  []NICRequest
	Seed  *SeedRequest
}

// CreateInstance provisions the storage volumes, builds the domain document
// and defines it on the hypervisor. The instance is not started.
//
// On error the creation stops where it is: volumes already created are kept
// for inspection and reuse on retry.
func CreateInstance(ctx context.Context, client Client, cfg *config.Config, req CreateRequest) error {
	cpuModel := req.CPUModel
	if cpuModel == "" {
		cpuModel = cfg.Defaults.CPUModel
	}

	domainType := req.DomainType
	if domainType == "" {
		domainType = cfg.Defaults.DomainType
	}
	if domainType == "" {
		return fmt.Errorf("no domain type given and no default configured")
	}

	presetName := req.DomainPreset
	if presetName == "" {
		presetName = cfg.Defaults.DomainPreset
	}
	if presetName == "" {
		return fmt.Errorf("no domain preset given and no default configured")
	}

	domainPreset, err := cfg.DomainPreset(presetName)
	if err != nil {
		return err
	}

	machineType := req.MachineType
	if machineType == "" {
		machineType = domainPreset.MachineType
	}
	archName := req.ArchName
	if archName == "" {
		archName = domainPreset.ArchName
	}

	// Resolve every disk and interface preset before touching the
	// hypervisor, so a bad name fails the run up front.
	disks := make([]DiskRequest, len(req.Disks))
	for i, dr := range req.Disks {
		preset, err := cfg.DiskPreset(dr.Preset)
		if err != nil {
			return err
		}
		disks[i] = mergeDiskPreset(dr, preset)
	}

	nics := make([]NICRequest, len(req.NICs))
	for i, nr := range req.NICs {
		preset, err := cfg.InterfacePreset(nr.Preset)
		if err != nil {
			return err
		}
		merged, err := mergeInterfacePreset(nr, preset)
		if err != nil {
			return err
		}
		nics[i] = merged
	}

	var seed *SeedRequest
	var seedImage []byte
	if req.Seed != nil {
		preset, err := cfg.DiskPreset(req.Seed.Preset)
		if err != nil {
			return err
		}
		s := *req.Seed
		if s.Pool == "" {
			s.Pool = preset.Pool
		}
		if s.Bus == "" {
			s.Bus = preset.Bus
		}
		if s.Cache == "" {
			s.Cache = preset.Cache
		}
		seed = &s

		metaData, err := cloudinit.MetaData{
			InstanceID:    req.InstanceID,
			LocalHostname: req.Name,
		}.Render()
		if err != nil {
			return err
		}

		log.Printf("Building cloud-init seed image for %s", req.Name)
		seedImage, err = cloudinit.BuildSeed(metaData, s.UserData, s.NetworkConfig)
		if err != nil {
			return fmt.Errorf("failed to build seed image: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	log.Printf("Building domain definition for %s", req.Name)
	d, err := domain.New(client, domain.Spec{
		Name:        req.Name,
		MemoryBytes: req.MemoryBytes,
		VCPUs:       req.VCPUs,
		BaseXML:     string(domainPreset.XML),
		DomainType:  domainType,
		Machine:     machineType,
		UUID:        req.InstanceID,
		ArchName:    archName,
		CPUModel:    cpuModel,
	})
	if err != nil {
		return fmt.Errorf("failed to build domain definition: %w", err)
	}

	for i, disk := range disks {
		name := naming.VolumeNameDisk(req.Name, i)

		log.Printf("Creating volume %s in pool %s", name, disk.Pool)
		vol, err := storage.NewVolume(client, storage.VolumeSpec{
			Name:       name,
			Pool:       disk.Pool,
			SizeBytes:  disk.SizeBytes,
			SourceName: disk.Source,
			SourcePool: disk.SourcePool,
		})
		if err != nil {
			return fmt.Errorf("failed to create volume %s: %w", name, err)
		}

		err = d.AddDisk(vol, domain.DiskOptions{
			Bus:       domain.Bus(disk.Bus),
			Cache:     disk.Cache,
			BootOrder: disk.BootOrder,
		})
		if err != nil {
			return fmt.Errorf("failed to attach volume %s: %w", name, err)
		}
	}

	if seed != nil {
		name := naming.VolumeNameSeed(req.Name)
		size := uint64(len(seedImage))

		log.Printf("Creating seed volume %s in pool %s", name, seed.Pool)
		vol, err := storage.NewVolume(client, storage.VolumeSpec{
			Name:      name,
			Pool:      seed.Pool,
			SizeBytes: size,
		})
		if err != nil {
			return fmt.Errorf("failed to create seed volume %s: %w", name, err)
		}

		if err := vol.Upload(bytes.NewReader(seedImage), size); err != nil {
			return fmt.Errorf("failed to upload seed image: %w", err)
		}

		err = d.AddDisk(vol, domain.DiskOptions{
			Bus:   domain.Bus(seed.Bus),
			Cache: seed.Cache,
		})
		if err != nil {
			return fmt.Errorf("failed to attach seed volume %s: %w", name, err)
		}
	}

	for _, nic := range nics {
		opts := domain.InterfaceOptions{
			ModelType:  nic.ModelType,
			MACAddress: nic.MACAddress,
			BootOrder:  nic.BootOrder,
			MTU:        nic.MTU,
		}

		switch {
		case nic.Network != "":
			err = d.AddNetworkInterface(nic.Network, opts)
		case nic.Bridge != "":
			err = d.AddBridgeInterface(nic.Bridge, opts)
		default:
			err = fmt.Errorf("interface preset %s names neither a network nor a bridge", nic.Preset)
		}
		if err != nil {
			return fmt.Errorf("failed to attach interface: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	log.Printf("Defining domain %s", req.Name)
	if err := d.Define(); err != nil {
		return fmt.Errorf("failed to define domain %s: %w", req.Name, err)
	}

	return nil
}

func mergeDiskPreset(dr DiskRequest, preset config.DiskPreset) DiskRequest {
	if dr.Pool == "" {
		dr.Pool = preset.Pool
	}
	if dr.Bus == "" {
		dr.Bus = preset.Bus
	}
	if dr.Cache == "" {
		dr.Cache = preset.Cache
	}
	if dr.Source == "" {
		dr.Source = preset.Source
	}
	if dr.SourcePool == "" {
		dr.SourcePool = preset.SourcePool
	}
	return dr
}

func mergeInterfacePreset(nr NICRequest, preset config.InterfacePreset) (NICRequest, error) {
	if nr.ModelType == "" {
		nr.ModelType = preset.ModelType
	}
	if nr.MACAddress == "" {
		nr.MACAddress = preset.MACAddress
	}
	if nr.MTU == 0 {
		nr.MTU = preset.MTU
	}

	switch preset.Type {
	case "network":
		if nr.Network == "" {
			nr.Network = preset.Network
		}
		if nr.Network == "" {
			return nr, fmt.Errorf("interface preset %s has no network name", nr.Preset)
		}
		nr.Bridge = ""
	case "bridge":
		if nr.Bridge == "" {
			nr.Bridge = preset.Bridge
		}
		if nr.Bridge == "" {
			return nr, fmt.Errorf("interface preset %s has no bridge name", nr.Preset)
		}
		nr.Network = ""
	}

	return nr, nil
}
