// Package config loads the instance configuration: global defaults plus
// named presets for domains, disks, and network interfaces. The built-in
// configuration ships two headless-server domain presets; a YAML config
// file overlays defaults per key and presets per name.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed presets/headless-server-x86_64.xml
var presetHeadlessX86XML string

//go:embed presets/headless-server-aarch64.xml
var presetHeadlessAArch64XML string

var (
	// ErrPresetNotFound is returned when a named preset does not exist.
	ErrPresetNotFound = errors.New("preset not found")

	// ErrUnsupportedPresetType is returned when a preset declares a type
	// outside the supported set (disk: volume; interface: network, bridge).
	ErrUnsupportedPresetType = errors.New("unsupported preset type")

	// ErrInvalidPreset is returned when a preset is missing a required key.
	ErrInvalidPreset = errors.New("invalid preset")
)

// XMLString is a string that marshals to YAML as a literal block scalar,
// keeping embedded XML documents readable in `get-config` output.
type XMLString string

func (s XMLString) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.LiteralStyle,
		Value: string(s),
	}, nil
}

// Defaults are fall-back values for create-time choices the caller leaves
// unset. An empty CPUModel means host passthrough.
type Defaults struct {
	CPUModel     string `yaml:"cpu-model,omitempty"`
	DomainType   string `yaml:"domain-type,omitempty"`
	DomainPreset string `yaml:"domain-preset,omitempty"`
}

// DomainPreset is a named base for new domains: the architecture, the
// machine type, and the base XML document the definition builder extends.
// XMLFile, when set, is read at load time and replaces XML.
type DomainPreset struct {
	ArchName    string    `yaml:"arch-name"`
	MachineType string    `yaml:"machine-type"`
	XML         XMLString `yaml:"xml,omitempty"`
	XMLFile     string    `yaml:"xml-file,omitempty"`
}

// DiskPreset is a named set of disk attachment defaults. Only type volume
// is supported.
type DiskPreset struct {
	Type       string `yaml:"type"`
	Pool       string `yaml:"pool,omitempty"`
	Bus        string `yaml:"bus,omitempty"`
	Cache      string `yaml:"cache,omitempty"`
	Source     string `yaml:"source,omitempty"`
	SourcePool string `yaml:"source-pool,omitempty"`
}

// InterfacePreset is a named set of network interface defaults. Type is
// either network or bridge.
type InterfacePreset struct {
	Type       string `yaml:"type"`
	ModelType  string `yaml:"model-type,omitempty"`
	Network    string `yaml:"network,omitempty"`
	Bridge     string `yaml:"bridge,omitempty"`
	MACAddress string `yaml:"mac-address,omitempty"`
	MTU        uint   `yaml:"mtu,omitempty"`
}

// Presets groups the preset maps by kind.
type Presets struct {
	Domain    map[string]DomainPreset    `yaml:"domain"`
	Disk      map[string]DiskPreset      `yaml:"disk"`
	Interface map[string]InterfacePreset `yaml:"interface"`
}

// Config is the merged built-in + user configuration.
type Config struct {
	Defaults Defaults `yaml:"defaults"`
	Preset   Presets  `yaml:"preset"`
}

// New returns the built-in configuration.
func New() *Config {
	return &Config{
		Defaults: Defaults{
			DomainType: "kvm",
		},
		Preset: Presets{
			Domain: map[string]DomainPreset{
				"headless-server-x86_64": {
					ArchName:    "x86_64",
					MachineType: "pc",
					XML:         XMLString(presetHeadlessX86XML),
				},
				"headless-server-aarch64": {
					ArchName:    "aarch64",
					MachineType: "virt",
					XML:         XMLString(presetHeadlessAArch64XML),
				},
			},
			Disk:      map[string]DiskPreset{},
			Interface: map[string]InterfacePreset{},
		},
	}
}

// Load overlays a YAML config document onto the built-in configuration.
// Defaults are merged per key, presets replace built-ins per name.
func Load(r io.Reader) (*Config, error) {
	c := New()

	var user Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&user); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if user.Defaults.CPUModel != "" {
		c.Defaults.CPUModel = user.Defaults.CPUModel
	}
	if user.Defaults.DomainType != "" {
		c.Defaults.DomainType = user.Defaults.DomainType
	}
	if user.Defaults.DomainPreset != "" {
		c.Defaults.DomainPreset = user.Defaults.DomainPreset
	}

	for name, p := range user.Preset.Domain {
		c.Preset.Domain[name] = p
	}
	for name, p := range user.Preset.Disk {
		c.Preset.Disk[name] = p
	}
	for name, p := range user.Preset.Interface {
		c.Preset.Interface[name] = p
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFile loads the config file at path. A missing file is not an error:
// the built-in configuration is returned.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) validate() error {
	for name, p := range c.Preset.Domain {
		if p.XMLFile != "" {
			body, err := os.ReadFile(p.XMLFile)
			if err != nil {
				return fmt.Errorf("%w: domain/%s: %v", ErrInvalidPreset, name, err)
			}
			p.XML = XMLString(body)
			c.Preset.Domain[name] = p
		}

		if p.ArchName == "" || p.MachineType == "" || p.XML == "" {
			return fmt.Errorf("%w: domain/%s is missing arch-name, machine-type, or xml", ErrInvalidPreset, name)
		}
	}

	for name, p := range c.Preset.Disk {
		if p.Type != "volume" {
			return fmt.Errorf("%w: disk/%s has type %q, only volume is supported", ErrUnsupportedPresetType, name, p.Type)
		}
	}

	for name, p := range c.Preset.Interface {
		if p.Type != "network" && p.Type != "bridge" {
			return fmt.Errorf("%w: interface/%s has type %q, want network or bridge", ErrUnsupportedPresetType, name, p.Type)
		}
	}

	return nil
}

// DomainPreset returns the named domain preset.
func (c *Config) DomainPreset(name string) (DomainPreset, error) {
	p, ok := c.Preset.Domain[name]
	if !ok {
		return DomainPreset{}, fmt.Errorf("%w: domain/%s", ErrPresetNotFound, name)
	}
	return p, nil
}

// DiskPreset returns the named disk preset.
func (c *Config) DiskPreset(name string) (DiskPreset, error) {
	p, ok := c.Preset.Disk[name]
	if !ok {
		return DiskPreset{}, fmt.Errorf("%w: disk/%s", ErrPresetNotFound, name)
	}
	return p, nil
}

// InterfacePreset returns the named interface preset.
func (c *Config) InterfacePreset(name string) (InterfacePreset, error) {
	p, ok := c.Preset.Interface[name]
	if !ok {
		return InterfacePreset{}, fmt.Errorf("%w: interface/%s", ErrPresetNotFound, name)
	}
	return p, nil
}

// YAML renders the merged configuration as a YAML document.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}
