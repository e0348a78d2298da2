package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

const testCapsXML = `
<capabilities>
  <host>
    <cpu>
      <arch>x86_64</arch>
    </cpu>
  </host>
  <guest>
    <os_type>hvm</os_type>
    <arch name='x86_64'>
      <wordsize>64</wordsize>
      <emulator>/usr/bin/qemu-system-x86_64</emulator>
      <machine maxCpus='255'>pc</machine>
      <domain type='kvm'>
        <emulator>/usr/bin/qemu-kvm</emulator>
      </domain>
    </arch>
  </guest>
</capabilities>
`

// mockHypervisor implements Client: the storage and domain call surface of
// a libvirt connection.
type mockHypervisor struct {
	capsXML string

	poolXML map[string]string
	volXML  map[string]string

	createdVols []string
	uploads     map[string][]byte

	definedXML []string
	defineErr  error
}

func newMockHypervisor() *mockHypervisor {
	m := &mockHypervisor{
		capsXML: testCapsXML,
		poolXML: make(map[string]string),
		volXML:  make(map[string]string),
		uploads: make(map[string][]byte),
	}
	m.poolXML["default"] = `<pool type='dir'><name>default</name></pool>`
	return m
}

func (m *mockHypervisor) ConnectGetCapabilities() (string, error) {
	return m.capsXML, nil
}

func (m *mockHypervisor) DomainDefineXML(xml string) (libvirt.Domain, error) {
	if m.defineErr != nil {
		return libvirt.Domain{}, m.defineErr
	}
	m.definedXML = append(m.definedXML, xml)
	return libvirt.Domain{Name: "defined"}, nil
}

func (m *mockHypervisor) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.poolXML[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockHypervisor) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	return m.poolXML[pool.Name], nil
}

func (m *mockHypervisor) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	var vols []libvirt.StorageVol
	for name := range m.volXML {
		vols = append(vols, libvirt.StorageVol{Pool: pool.Name, Name: name})
	}
	return vols, uint32(len(vols)), nil
}

func (m *mockHypervisor) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	if _, ok := m.volXML[name]; !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockHypervisor) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	name := xmlTagValue(xml, "name")
	m.volXML[name] = fmt.Sprintf("<volume><name>%s</name><target><path>%s/%s</path></target></volume>", name, pool.Name, name)
	m.createdVols = append(m.createdVols, name)
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockHypervisor) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, clonevol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	return m.StorageVolCreateXML(pool, xml, flags)
}

func (m *mockHypervisor) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	return 0, 1 << 20, 1 << 20, nil
}

func (m *mockHypervisor) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	return m.volXML[vol.Name], nil
}

func (m *mockHypervisor) StorageVolResize(vol libvirt.StorageVol, capacity uint64, flags libvirt.StorageVolResizeFlags) error {
	return nil
}

func (m *mockHypervisor) StorageVolUpload(vol libvirt.StorageVol, outStream io.Reader, offset, length uint64, flags libvirt.StorageVolUploadFlags) error {
	data, err := io.ReadAll(outStream)
	if err != nil {
		return err
	}
	m.uploads[vol.Name] = data
	return nil
}

func xmlTagValue(xml, tag string) string {
	start := strings.Index(xml, "<"+tag+">")
	if start < 0 {
		return ""
	}
	start += len(tag) + 2
	end := strings.Index(xml[start:], "</"+tag+">")
	if end < 0 {
		return ""
	}
	return xml[start : start+end]
}
