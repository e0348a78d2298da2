package storage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

// mockClient is a mock implementation of Client for testing.
type mockClient struct {
	pools map[string]*mockPool

	resizeCalls []resizeCall
}

type mockPool struct {
	name    string
	xmlDesc string
	volumes map[string]*mockVolume
}

type mockVolume struct {
	name     string
	capacity uint64
	xmlDesc  string
	data     []byte
}

type resizeCall struct {
	volume   string
	capacity uint64
	flags    libvirt.StorageVolResizeFlags
}

func newMockClient() *mockClient {
	return &mockClient{pools: make(map[string]*mockPool)}
}

func (m *mockClient) addPool(name, xmlDesc string) *mockPool {
	p := &mockPool{name: name, xmlDesc: xmlDesc, volumes: make(map[string]*mockVolume)}
	m.pools[name] = p
	return p
}

func dirPoolXML(name string) string {
	return fmt.Sprintf(`
<pool type='dir'>
  <name>%s</name>
  <target>
    <path>/var/lib/libvirt/images</path>
  </target>
</pool>`, name)
}

func rbdPoolXML(name string) string {
	return fmt.Sprintf(`
<pool type='rbd'>
  <name>%s</name>
  <source>
    <name>libvirt-pool</name>
    <host name='ceph-mon1.example.com' port='6789'/>
    <host name='ceph-mon2.example.com'/>
    <auth type='ceph' username='libvirt'>
      <secret uuid='2ec115d7-3a88-3ceb-bc12-0ac909a6fd87'/>
    </auth>
  </source>
</pool>`, name)
}

func volumeXML(name, path string) string {
	target := ""
	if path != "" {
		target = fmt.Sprintf("<target><path>%s</path></target>", path)
	}
	return fmt.Sprintf("<volume><name>%s</name>%s</volume>", name, target)
}

func (m *mockClient) lookupPool(name string) (*mockPool, error) {
	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", name)
	}
	return p, nil
}

func (m *mockClient) lookupVolume(ref libvirt.StorageVol) (*mockVolume, error) {
	p, err := m.lookupPool(ref.Pool)
	if err != nil {
		return nil, err
	}
	v, ok := p.volumes[ref.Name]
	if !ok {
		return nil, fmt.Errorf("storage volume not found: %s", ref.Name)
	}
	return v, nil
}

func (m *mockClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	p, err := m.lookupPool(name)
	if err != nil {
		return libvirt.StoragePool{}, err
	}
	return libvirt.StoragePool{Name: p.name}, nil
}

func (m *mockClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	p, err := m.lookupPool(pool.Name)
	if err != nil {
		return "", err
	}
	return p.xmlDesc, nil
}

func (m *mockClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	p, err := m.lookupPool(pool.Name)
	if err != nil {
		return nil, 0, err
	}
	var vols []libvirt.StorageVol
	for name := range p.volumes {
		vols = append(vols, libvirt.StorageVol{Pool: p.name, Name: name})
	}
	return vols, uint32(len(vols)), nil
}

func (m *mockClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	p, err := m.lookupPool(pool.Name)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	if _, ok := p.volumes[name]; !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: p.name, Name: name}, nil
}

func (m *mockClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	p, err := m.lookupPool(pool.Name)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: missing name")
	}
	capacity := extractCapacity(xml)
	p.volumes[name] = &mockVolume{
		name:     name,
		capacity: capacity,
		xmlDesc:  volumeXML(name, "/var/lib/libvirt/images/"+name),
	}
	return libvirt.StorageVol{Pool: p.name, Name: name}, nil
}

func (m *mockClient) StorageVolCreateXMLFrom(pool libvirt.StoragePool, xml string, clonevol libvirt.StorageVol, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	src, err := m.lookupVolume(clonevol)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	p, err := m.lookupPool(pool.Name)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: missing name")
	}
	p.volumes[name] = &mockVolume{
		name:     name,
		capacity: src.capacity,
		xmlDesc:  volumeXML(name, "/var/lib/libvirt/images/"+name),
		data:     append([]byte(nil), src.data...),
	}
	return libvirt.StorageVol{Pool: p.name, Name: name}, nil
}

func (m *mockClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	v, err := m.lookupVolume(vol)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, v.capacity, v.capacity, nil
}

func (m *mockClient) StorageVolGetXMLDesc(vol libvirt.StorageVol, flags uint32) (string, error) {
	v, err := m.lookupVolume(vol)
	if err != nil {
		return "", err
	}
	return v.xmlDesc, nil
}

func (m *mockClient) StorageVolResize(vol libvirt.StorageVol, capacity uint64, flags libvirt.StorageVolResizeFlags) error {
	v, err := m.lookupVolume(vol)
	if err != nil {
		return err
	}
	v.capacity = capacity
	m.resizeCalls = append(m.resizeCalls, resizeCall{volume: vol.Name, capacity: capacity, flags: flags})
	return nil
}

func (m *mockClient) StorageVolUpload(vol libvirt.StorageVol, outStream io.Reader, offset, length uint64, flags libvirt.StorageVolUploadFlags) error {
	v, err := m.lookupVolume(vol)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(outStream)
	if err != nil {
		return err
	}
	if uint64(len(data)) != length {
		return fmt.Errorf("upload length mismatch: declared %d, got %d", length, len(data))
	}
	v.data = data
	return nil
}

// extractTagValue extracts the text content of a simple XML tag, ignoring
// any attributes on the opening tag.
func extractTagValue(xml, tag string) string {
	start := strings.Index(xml, "<"+tag)
	if start < 0 {
		return ""
	}
	start = strings.Index(xml[start:], ">") + start
	if start < 0 {
		return ""
	}
	start++

	end := strings.Index(xml[start:], "</"+tag+">")
	if end < 0 {
		return ""
	}
	return xml[start : start+end]
}

func extractCapacity(xml string) uint64 {
	n, err := strconv.ParseUint(extractTagValue(xml, "capacity"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
