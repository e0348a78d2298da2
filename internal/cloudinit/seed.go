// Package cloudinit builds cloud-init NoCloud seed images.
//
// A seed image is an ISO 9660 volume labelled "cidata" containing meta-data,
// user-data, and optionally network-config in its root directory.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kdomanski/iso9660"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// MetaData is the NoCloud meta-data document. Cloud-init uses instance-id
// to decide whether the instance is new; a fresh UUID forces a first boot.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// Render marshals the meta-data to YAML.
func (m MetaData) Render() (string, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data: %w", err)
	}
	return string(out), nil
}

// BuildSeed assembles a NoCloud seed ISO from the given file bodies.
// userData may be empty; cloud-init requires the file to exist either way.
// networkConfig is omitted from the image when empty.
func BuildSeed(metaData, userData, networkConfig string) ([]byte, error) {
	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		_ = writer.Cleanup()
	}()

	if err := writer.AddFile(strings.NewReader(metaData), "meta-data"); err != nil {
		return nil, fmt.Errorf("failed to add meta-data: %w", err)
	}

	if err := writer.AddFile(strings.NewReader(userData), "user-data"); err != nil {
		return nil, fmt.Errorf("failed to add user-data: %w", err)
	}

	if networkConfig != "" {
		if err := writer.AddFile(strings.NewReader(networkConfig), "network-config"); err != nil {
			return nil, fmt.Errorf("failed to add network-config: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, "cidata"); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}

	return buf.Bytes(), nil
}

// AuthorizedKeysUserData builds a minimal cloud-config user-data that
// installs the given SSH public keys for the default user. Each key must be
// in authorized_keys format.
func AuthorizedKeysUserData(keys []string) (string, error) {
	for i, key := range keys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return "", fmt.Errorf("invalid SSH public key at index %d: %w", i, err)
		}
	}

	doc := struct {
		SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys"`
	}{
		SSHAuthorizedKeys: keys,
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data: %w", err)
	}

	return "#cloud-config\n" + string(out), nil
}
