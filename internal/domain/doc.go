// Package domain builds libvirt domain definitions.
//
// A Definition is constructed from a base template document plus runtime
// parameters (identity, memory, vCPUs, CPU model, machine type), resolves
// the emulator binary from hypervisor capabilities, and grows by repeated
// disk and network-interface attachments before being submitted with
// Define. Device names and SCSI drive addresses are allocated against the
// current document state, so repeated attachments never collide.
//
// A Definition is not safe for concurrent use; callers serialize all
// mutations against one instance.
package domain
