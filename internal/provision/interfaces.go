package provision

import (
	"context"

	"github.com/vmware/govmomi/object"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/deploydb"
)

// hypervisor defines the hypervisor session operations needed by the run.
//
// In production, this is satisfied by *vsphere.Session.
// In tests, this is satisfied by mock implementations.
type hypervisor interface {
	// FindVM looks up a VM by name; (nil, nil) means it does not exist.
	FindVM(ctx context.Context, name string) (*object.VirtualMachine, error)

	// CreateVM allocates a VM and applies the hardware configuration sequence.
	CreateVM(ctx context.Context, spec *config.VMSpec, resourcePool, diskFormat, controllerType string) (*object.VirtualMachine, error)

	// ResetVM replaces the boot disk of an existing VM.
	ResetVM(ctx context.Context, vm *object.VirtualMachine, diskSizeGB int, diskFormat, controllerType string) error

	// MACAddress reads the primary adapter's MAC, uppercased.
	MACAddress(ctx context.Context, vm *object.VirtualMachine) (string, error)

	// PowerOn starts the VM.
	PowerOn(ctx context.Context, vm *object.VirtualMachine) error

	// OpenConsole returns a console URL for the VM.
	OpenConsole(ctx context.Context, vm *object.VirtualMachine) (string, error)
}

// registry defines the deployment database operations needed by the run.
//
// In production, this is satisfied by *deploydb.Gateway.
// In tests, this is satisfied by mock implementations.
type registry interface {
	// LookupByMAC returns the identity for a MAC, or nil if absent.
	LookupByMAC(mac string) (*deploydb.Identity, error)

	// Register inserts the identity and settings records for a machine.
	Register(description, mac string, settings deploydb.Settings) error

	// Close releases the database connection.
	Close() error
}

// registryConnector lazily opens the deployment database connection. It is
// called at most once per run, the first time a newly created VM needs to be
// registered.
type registryConnector func() (registry, error)
