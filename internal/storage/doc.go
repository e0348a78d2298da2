// Package storage manages libvirt storage volumes for instance disks.
//
// A Volume is created (or, when permitted, adopted) inside a named storage
// pool, with its capacity rounded up to 1 MiB. Volumes may be cloned from an
// existing source volume and seeded with uploaded data, which is how
// cloud-init seed images reach the hypervisor.
//
// The package talks to libvirt through the narrow Client interface so tests
// can substitute a mock connection.
package storage
