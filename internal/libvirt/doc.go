// Package libvirt manages the connection to the libvirt daemon.
//
// It wraps github.com/digitalocean/go-libvirt with connection lifecycle
// handling (connect, disconnect, ping) over a Unix domain socket:
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// This package does not define interfaces. Consumers (internal/domain,
// internal/storage, internal/vm) define their own narrow Client interfaces
// naming only the operations they call; the *libvirt.Libvirt returned by
// Libvirt() satisfies them implicitly.
package libvirt
