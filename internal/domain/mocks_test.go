package domain

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/anvil/internal/storage"
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
      <machine maxCpus='255'>pc-i440fx-6.2</machine>
      <machine canonical='pc-i440fx-6.2' maxCpus='255'>pc</machine>
      <domain type='qemu'>
        <emulator>/usr/bin/qemu</emulator>
        <machine maxCpus='255'>pc-i440fx-6.1</machine>
      </domain>
      <domain type='kvm'>
        <emulator>/usr/bin/qemu-kvm</emulator>
        <machine maxCpus='255'>pc-i440fx-7.0</machine>
      </domain>
    </arch>
  </guest>
</capabilities>
`

// mockClient is a mock hypervisor connection for the definition builder.
type mockClient struct {
	capsXML string

	definedXML []string
	defineErr  error
}

func newMockClient() *mockClient {
	return &mockClient{capsXML: testCapsXML}
}

func (m *mockClient) ConnectGetCapabilities() (string, error) {
	return m.capsXML, nil
}

func (m *mockClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	if m.defineErr != nil {
		return libvirt.Domain{}, m.defineErr
	}
	m.definedXML = append(m.definedXML, xml)
	return libvirt.Domain{Name: "defined"}, nil
}

// mockStorageClient is just enough of storage.Client to construct Volume
// fixtures for disk attachment tests.
type mockStorageClient struct {
	poolXML map[string]string
	volXML  map[string]string
}

func newMockStorageClient() *mockStorageClient {
	return &mockStorageClient{
		poolXML: make(map[string]string),
		volXML:  make(map[string]string),
	}
}

func (m *mockStorageClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.poolXML[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockStorageClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	return m.poolXML[pool.Name], nil
}

func (m *mockStorageClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	return nil, 0, nil
}

func (m *mockStorageClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockStorageClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	name := xmlTagValue(xml, "name")
	m.volXML[name] = fmt.Sprintf("<volume><name>%s</name><target><path>pool/%s</path></target></volume>", name, name)
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockStorageClient) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, clonevol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	return m.StorageVolCreateXML(pool, xml, flags)
}

func (m *mockStorageClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	return 0, 0, 0, nil
}

func (m *mockStorageClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	return m.volXML[vol.Name], nil
}

func (m *mockStorageClient) StorageVolResize(vol libvirt.StorageVol, capacity uint64, flags libvirt.StorageVolResizeFlags) error {
	return nil
}

func (m *mockStorageClient) StorageVolUpload(vol libvirt.StorageVol, outStream io.Reader, offset, length uint64, flags libvirt.StorageVolUploadFlags) error {
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

// newTestVolume creates a volume in a pool of the given backend type for
// attachment tests.
func newTestVolume(t *testing.T, poolType, poolName, name string) *storage.Volume {
	t.Helper()

	sc := newMockStorageClient()
	sc.poolXML[poolName] = fmt.Sprintf(`
<pool type='%s'>
  <name>%s</name>
  <source>
    <host name='ceph-mon1.example.com' port='6789'/>
    <auth type='ceph' username='libvirt'>
      <secret uuid='2ec115d7-3a88-3ceb-bc12-0ac909a6fd87'/>
    </auth>
  </source>
</pool>`, poolType, poolName)

	vol, err := storage.NewVolume(sc, storage.VolumeSpec{
		Name:      name,
		Pool:      poolName,
		SizeBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("failed to create test volume: %v", err)
	}
	return vol
}
