// Package naming provides infrastructure-level naming conventions for
// libvirt resources: guest block-device naming and the volume naming
// patterns used by the instance create flow.
//
// These naming rules are shared between the storage and domain layers.
package naming

import "fmt"

// DriveName converts a zero-based index into the bijective base-26 letter
// sequence used for Linux block-device suffixes:
//
//	0 → "a", 25 → "z", 26 → "aa", 701 → "zz", 702 → "aaa"
//
// Combined with a bus prefix this yields names like vda, sdb, sdaa.
// See https://rwmj.wordpress.com/2011/01/09/how-are-linux-drives-named-beyond-drive-26-devsdz/
func DriveName(index int) string {
	var buf []byte

	for d := index + 1; d > 0; d /= 26 {
		d--
		buf = append(buf, byte('a'+d%26))
	}

	// reverse in place
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf)
}

// VolumeNameDisk returns the volume name for the nth data disk of an
// instance. Format: {name}-disk{n}
func VolumeNameDisk(instanceName string, n int) string {
	return fmt.Sprintf("%s-disk%d", instanceName, n)
}

// VolumeNameSeed returns the volume name for an instance's cloud-init seed
// image. Format: {name}-seed
func VolumeNameSeed(instanceName string) string {
	return fmt.Sprintf("%s-seed", instanceName)
}
