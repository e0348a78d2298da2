// Package vm orchestrates instance creation: it resolves presets and
// defaults from the configuration, builds storage volumes and the cloud-init
// seed image, assembles the domain definition, and submits it to the
// hypervisor.
//
// Creation is fail-fast with no rollback: volumes created before an error
// are left in place so a failed run can be inspected and retried.
package vm
