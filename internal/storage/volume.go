package storage

import (
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	libvirtxml "libvirt.org/go/libvirtxml"

	"github.com/jbweber/anvil/internal/units"
)

// Volume is a storage volume bound inside a libvirt pool. It is created
// once by NewVolume and immutable afterwards, except for the one-time data
// upload.
type Volume struct {
	Name          string
	PoolName      string
	PoolType      PoolType
	CapacityBytes uint64

	client   Client
	pool     libvirt.StoragePool
	poolDesc *libvirtxml.StoragePool
	vol      libvirt.StorageVol
}

// NewVolume creates or adopts a volume per spec.
//
// The requested size is rounded up to the next 1 MiB boundary. If a volume
// of the same name already exists in the pool it is adopted only when
// spec.ExistOK is set; otherwise ErrVolumeAlreadyExists is returned. A new
// volume is either allocated blank or cloned from spec.SourceName (looked up
// in spec.SourcePool, defaulting to the target pool). A clone source larger
// than the aligned target size fails with ErrSourceVolumeTooBig; a smaller
// one is grown to the target size after cloning.
func NewVolume(client Client, spec VolumeSpec) (*Volume, error) {
	size := units.AlignUp(spec.SizeBytes, units.MiB)

	pool, err := client.StoragePoolLookupByName(spec.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pool %s: %w", spec.Pool, err)
	}

	poolXML, err := client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to describe pool %s: %w", spec.Pool, err)
	}

	poolDesc := &libvirtxml.StoragePool{}
	if err := poolDesc.Unmarshal(poolXML); err != nil {
		return nil, fmt.Errorf("failed to parse pool %s descriptor: %w", spec.Pool, err)
	}

	v := &Volume{
		Name:          spec.Name,
		PoolName:      spec.Pool,
		PoolType:      PoolType(poolDesc.Type),
		CapacityBytes: size,
		client:        client,
		pool:          pool,
		poolDesc:      poolDesc,
	}

	existing, _, err := client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes in pool %s: %w", spec.Pool, err)
	}

	for _, ev := range existing {
		if ev.Name != spec.Name {
			continue
		}
		if !spec.ExistOK {
			return nil, fmt.Errorf("%w: %s in pool %s", ErrVolumeAlreadyExists, spec.Name, spec.Pool)
		}
		vol, err := client.StorageVolLookupByName(pool, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing volume %s: %w", spec.Name, err)
		}
		v.vol = vol
		return v, nil
	}

	if spec.SourceName == "" {
		v.vol, err = createBlank(client, pool, spec.Name, size)
	} else {
		v.vol, err = createFromSource(client, pool, spec, size)
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

func createBlank(client Client, pool libvirt.StoragePool, name string, size uint64) (libvirt.StorageVol, error) {
	def := &libvirtxml.StorageVolume{
		Name: name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Unit:  "bytes",
			Value: size,
		},
		Allocation: &libvirtxml.StorageVolumeSize{
			Unit:  "bytes",
			Value: size,
		},
	}

	xml, err := def.Marshal()
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to build volume XML for %s: %w", name, err)
	}

	vol, err := client.StorageVolCreateXML(pool, xml, 0)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to create volume %s: %w", name, err)
	}
	return vol, nil
}

func createFromSource(client Client, pool libvirt.StoragePool, spec VolumeSpec, size uint64) (libvirt.StorageVol, error) {
	srcPool := pool
	if spec.SourcePool != "" {
		var err error
		srcPool, err = client.StoragePoolLookupByName(spec.SourcePool)
		if err != nil {
			return libvirt.StorageVol{}, fmt.Errorf("failed to look up source pool %s: %w", spec.SourcePool, err)
		}
	}

	srcVol, err := client.StorageVolLookupByName(srcPool, spec.SourceName)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to look up source volume %s: %w", spec.SourceName, err)
	}

	_, srcCapacity, _, err := client.StorageVolGetInfo(srcVol)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to get source volume %s info: %w", spec.SourceName, err)
	}

	if srcCapacity > size {
		return libvirt.StorageVol{}, fmt.Errorf("%w: source %s is %d bytes, target %s is %d bytes",
			ErrSourceVolumeTooBig, spec.SourceName, srcCapacity, spec.Name, size)
	}

	// The clone inherits the source capacity; only the name is specified.
	def := &libvirtxml.StorageVolume{Name: spec.Name}
	xml, err := def.Marshal()
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to build volume XML for %s: %w", spec.Name, err)
	}

	vol, err := client.StorageVolCreateXMLFrom(pool, xml, srcVol, 0)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to clone volume %s from %s: %w", spec.Name, spec.SourceName, err)
	}

	if srcCapacity < size {
		if err := client.StorageVolResize(vol, size, libvirt.StorageVolResizeAllocate); err != nil {
			return libvirt.StorageVol{}, fmt.Errorf("failed to grow volume %s to %d bytes: %w", spec.Name, size, err)
		}
	}

	return vol, nil
}

// Upload streams exactly size bytes from r into the volume.
func (v *Volume) Upload(r io.Reader, size uint64) error {
	if err := v.client.StorageVolUpload(v.vol, r, 0, size, 0); err != nil {
		return fmt.Errorf("failed to upload %d bytes to volume %s: %w", size, v.Name, err)
	}
	return nil
}

// NetworkSource resolves the descriptor a network-typed disk entry needs:
// the backing path from the volume target plus the access hosts and
// authentication declared on the pool.
func (v *Volume) NetworkSource() (*NetworkSource, error) {
	volXML, err := v.client.StorageVolGetXMLDesc(v.vol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to describe volume %s: %w", v.Name, err)
	}

	volDesc := &libvirtxml.StorageVolume{}
	if err := volDesc.Unmarshal(volXML); err != nil {
		return nil, fmt.Errorf("failed to parse volume %s descriptor: %w", v.Name, err)
	}

	if volDesc.Target == nil || volDesc.Target.Path == "" {
		return nil, fmt.Errorf("%w: volume %s in pool %s", ErrBackingPathUnknown, v.Name, v.PoolName)
	}

	ns := &NetworkSource{
		Protocol: string(v.PoolType),
		Path:     volDesc.Target.Path,
	}

	if src := v.poolDesc.Source; src != nil {
		for _, h := range src.Host {
			if h.Name == "" {
				continue
			}
			ns.Hosts = append(ns.Hosts, RemoteHost{Name: h.Name, Port: h.Port})
		}

		if auth := src.Auth; auth != nil && auth.Type == "ceph" && auth.Username != "" {
			if auth.Secret != nil && auth.Secret.UUID != "" {
				ns.Auth = &Auth{Username: auth.Username, SecretUUID: auth.Secret.UUID}
			}
		}
	}

	return ns, nil
}
