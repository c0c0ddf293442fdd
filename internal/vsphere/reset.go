package vsphere

import (
	"context"
	"fmt"
	"log"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// resetSteps are the four reset stages. They are split out so tests can
// record the sequence they run in.
type resetSteps struct {
	powerOff        func(ctx context.Context, vm *object.VirtualMachine) error
	removeSnapshots func(ctx context.Context, vm *object.VirtualMachine) error
	removeDisk      func(ctx context.Context, vm *object.VirtualMachine) error
	recreateDisk    func(ctx context.Context, vm *object.VirtualMachine) error
}

// ResetVM returns an existing VM to a clean pre-deployment state by
// replacing its boot disk. The order is mandatory: power off (if powered
// on), remove all snapshots, remove the primary disk, then create the
// replacement. A disk cannot be removed while a snapshot references it,
// which is why snapshot removal comes first.
func (s *Session) ResetVM(ctx context.Context, vm *object.VirtualMachine, diskSizeGB int, diskFormat, controllerType string) error {
	return resetVM(ctx, vm, resetSteps{
		powerOff:        s.forcePowerOff,
		removeSnapshots: s.removeAllSnapshots,
		removeDisk:      s.removePrimaryDisk,
		recreateDisk: func(ctx context.Context, vm *object.VirtualMachine) error {
			log.Printf("Creating replacement %dGB disk on a new %s controller...", diskSizeGB, controllerType)
			return s.recreateDisk(ctx, vm, diskSizeGB, diskFormat, controllerType)
		},
	})
}

// resetVM runs the reset stages in their mandatory order, stopping at the
// first failure.
func resetVM(ctx context.Context, vm *object.VirtualMachine, steps resetSteps) error {
	if err := steps.powerOff(ctx, vm); err != nil {
		return err
	}
	if err := steps.removeSnapshots(ctx, vm); err != nil {
		return err
	}
	if err := steps.removeDisk(ctx, vm); err != nil {
		return err
	}
	return steps.recreateDisk(ctx, vm)
}

// forcePowerOff hard-stops the VM if it is powered on. The guest is about to
// be reimaged, so there is nothing worth shutting down cleanly.
func (s *Session) forcePowerOff(ctx context.Context, vm *object.VirtualMachine) error {
	state, err := vm.PowerState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read power state: %w", err)
	}
	if state != types.VirtualMachinePowerStatePoweredOn {
		return nil
	}

	log.Printf("VM is powered on, forcing power off...")
	task, err := vm.PowerOff(ctx)
	if err != nil {
		return fmt.Errorf("failed to power off VM: %w", err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to power off VM: %w", err)
	}
	return nil
}

// removeAllSnapshots deletes the VM's entire snapshot tree, children
// included. A VM without snapshots is left untouched.
func (s *Session) removeAllSnapshots(ctx context.Context, vm *object.VirtualMachine) error {
	var props mo.VirtualMachine
	pc := property.DefaultCollector(s.client)
	if err := pc.RetrieveOne(ctx, vm.Reference(), []string{"snapshot"}, &props); err != nil {
		return fmt.Errorf("failed to read snapshot tree: %w", err)
	}
	if props.Snapshot == nil || len(props.Snapshot.RootSnapshotList) == 0 {
		log.Printf("No snapshots to remove")
		return nil
	}

	log.Printf("Removing all snapshots...")
	task, err := vm.RemoveAllSnapshot(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to remove snapshots: %w", err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to remove snapshots: %w", err)
	}
	return nil
}

// removePrimaryDisk deletes the VM's first virtual disk, destroying its
// backing files rather than detaching them.
func (s *Session) removePrimaryDisk(ctx context.Context, vm *object.VirtualMachine) error {
	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to read VM devices: %w", err)
	}

	disks := devices.SelectByType((*types.VirtualDisk)(nil))
	if len(disks) == 0 {
		return fmt.Errorf("VM has no disk to remove")
	}

	log.Printf("Removing primary disk (files deleted permanently)...")
	if err := vm.RemoveDevice(ctx, false, disks[0]); err != nil {
		return fmt.Errorf("failed to remove disk: %w", err)
	}
	return nil
}

// recreateDisk adds a fresh SCSI controller of the configured type and a new
// disk of the configured size bound to it, placed on the VM's datastore.
func (s *Session) recreateDisk(ctx context.Context, vm *object.VirtualMachine, diskSizeGB int, diskFormat, controllerType string) error {
	var props mo.VirtualMachine
	pc := property.DefaultCollector(s.client)
	if err := pc.RetrieveOne(ctx, vm.Reference(), []string{"datastore"}, &props); err != nil {
		return fmt.Errorf("failed to read VM datastore: %w", err)
	}
	if len(props.Datastore) == 0 {
		return fmt.Errorf("VM has no datastore")
	}

	var add object.VirtualDeviceList

	scsi, err := add.CreateSCSIController(controllerType)
	if err != nil {
		return fmt.Errorf("failed to create SCSI controller of type %q: %w", controllerType, err)
	}
	add = append(add, scsi)

	disk := add.CreateDisk(scsi.(types.BaseVirtualController), props.Datastore[0], "")
	disk.CapacityInKB = int64(diskSizeGB) * 1024 * 1024
	applyDiskFormat(disk, diskFormat)
	add = append(add, disk)

	deviceChange, err := add.ConfigSpec(types.VirtualDeviceConfigSpecOperationAdd)
	if err != nil {
		return fmt.Errorf("failed to build device config: %w", err)
	}

	return s.reconfigure(ctx, vm, types.VirtualMachineConfigSpec{DeviceChange: deviceChange})
}
