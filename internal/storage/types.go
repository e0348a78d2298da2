package storage

import (
	"errors"
	"io"

	"github.com/digitalocean/go-libvirt"
)

// PoolType identifies the storage pool backend a volume lives on. The disk
// attachment XML differs per backend, so the domain layer branches on it.
type PoolType string

const (
	PoolTypeDir     PoolType = "dir"     // directory-backed files
	PoolTypeLogical PoolType = "logical" // LVM logical volumes
	PoolTypeRBD     PoolType = "rbd"     // Ceph RBD network block storage
)

var (
	// ErrVolumeAlreadyExists is returned when the target volume name is
	// already taken in the pool and ExistOK was not set.
	ErrVolumeAlreadyExists = errors.New("volume already exists")

	// ErrSourceVolumeTooBig is returned when the clone source reports a
	// capacity larger than the (aligned) requested target size.
	ErrSourceVolumeTooBig = errors.New("source volume too big")

	// ErrBackingPathUnknown is returned when a network-backed volume has no
	// resolvable target path in its descriptor.
	ErrBackingPathUnknown = errors.New("volume backing path unknown")
)

// Client is the subset of go-libvirt used by the volume manager. It allows
// for dependency injection and testing.
type Client interface {
	StoragePoolLookupByName(Name string) (libvirt.StoragePool, error)
	StoragePoolGetXMLDesc(Pool libvirt.StoragePool, Flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolListAllVolumes(Pool libvirt.StoragePool, NeedResults int32, Flags uint32) ([]libvirt.StorageVol, uint32, error)
	StorageVolLookupByName(Pool libvirt.StoragePool, Name string) (libvirt.StorageVol, error)
	StorageVolCreateXML(Pool libvirt.StoragePool, XML string, Flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolCreateXMLFrom(Pool libvirt.StoragePool, XML string, Clonevol libvirt.StorageVol, Flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolGetInfo(Vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error)
	StorageVolGetXMLDesc(Vol libvirt.StorageVol, Flags uint32) (string, error)
	StorageVolResize(Vol libvirt.StorageVol, Capacity uint64, Flags libvirt.StorageVolResizeFlags) error
	StorageVolUpload(Vol libvirt.StorageVol, outStream io.Reader, Offset uint64, Length uint64, Flags libvirt.StorageVolUploadFlags) error
}

// VolumeSpec describes the volume NewVolume should bind.
type VolumeSpec struct {
	Name       string // volume name, unique within the pool
	Pool       string // target pool name
	SizeBytes  uint64 // requested capacity, rounded up to 1 MiB
	ExistOK    bool   // adopt an existing volume of the same name
	SourceName string // optional clone source volume
	SourcePool string // pool of the clone source; defaults to Pool
}

// RemoteHost is one access endpoint of a network-backed pool.
type RemoteHost struct {
	Name string
	Port string
}

// Auth is the authentication a network-backed disk must present.
type Auth struct {
	Username   string
	SecretUUID string
}

// NetworkSource is the closed descriptor variant for network-backed
// volumes, carrying everything a domain disk entry needs to reference one.
type NetworkSource struct {
	Protocol string
	Path     string
	Hosts    []RemoteHost
	Auth     *Auth
}
