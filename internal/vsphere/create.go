package vsphere

import (
	"context"
	"fmt"
	"log"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/hardware"
)

// CreateVM allocates a new VM and then applies the hardware configuration
// sequence.
//
// Creation is two-phase:
//  1. CreateVM_Task with CPU topology, memory, guest id, hardware version,
//     datastore placement, a SCSI controller of the configured type, the
//     boot disk, and a network adapter whose backing depends on whether the
//     target network is a distributed portgroup or a standard network.
//  2. A sequence of independent reconfiguration steps: memory reservation
//     pinned to the configured maximum, network adapter upgraded to vmxnet3,
//     display count and video memory, EFI secure boot disabled, optional
//     vGPU profile, CPU/memory hot-add disabled.
//
// The SCSI controller is created at its final type in phase 1; unlike the
// network adapter it needs no post-create type change.
//
// A failure mid-sequence leaves the VM in a valid, inspectable state; there
// is no rollback.
func (s *Session) CreateVM(ctx context.Context, spec *config.VMSpec, resourcePool, diskFormat, controllerType string) (*object.VirtualMachine, error) {
	pool, err := s.findResourcePool(ctx, resourcePool)
	if err != nil {
		return nil, err
	}

	folder, err := s.finder.FolderOrDefault(ctx, spec.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to find folder %q: %w", spec.Folder, err)
	}

	ds, err := s.finder.Datastore(ctx, spec.Datastore)
	if err != nil {
		return nil, fmt.Errorf("failed to find datastore %q: %w", spec.Datastore, err)
	}

	backing, err := s.networkBacking(ctx, spec.Network)
	if err != nil {
		return nil, err
	}

	layout := hardware.Derive(spec.CPUCount, spec.GuestID)

	deviceChange, err := initialDevices(ds.Reference(), backing, spec.DiskSizeGB, diskFormat, controllerType)
	if err != nil {
		return nil, err
	}

	configSpec := types.VirtualMachineConfigSpec{
		Name:              spec.Name,
		GuestId:           spec.GuestID,
		NumCPUs:           int32(spec.CPUCount),
		NumCoresPerSocket: int32(layout.CoresPerSocket),
		MemoryMB:          int64(spec.MemoryGB) * 1024,
		Version:           spec.HardwareVersion,
		Firmware:          string(types.GuestOsDescriptorFirmwareTypeEfi),
		Files: &types.VirtualMachineFileInfo{
			VmPathName: fmt.Sprintf("[%s]", spec.Datastore),
		},
		DeviceChange: deviceChange,
	}

	log.Printf("Creating VM '%s' (%d vCPU, %d cores/socket, %dGB memory, %dGB disk)...",
		spec.Name, spec.CPUCount, layout.CoresPerSocket, spec.MemoryGB, spec.DiskSizeGB)

	task, err := folder.CreateVM(ctx, configSpec, pool, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start VM creation: %w", err)
	}

	info, err := task.WaitForResult(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM '%s': %w", spec.Name, err)
	}

	vm := object.NewVirtualMachine(s.client, info.Result.(types.ManagedObjectReference))

	if err := s.configureHardware(ctx, vm, spec); err != nil {
		return nil, err
	}

	return vm, nil
}

// findResourcePool resolves a resource pool by name, falling back to the
// root resource pool of a cluster with that name.
func (s *Session) findResourcePool(ctx context.Context, name string) (*object.ResourcePool, error) {
	pool, err := s.finder.ResourcePool(ctx, name)
	if err == nil {
		return pool, nil
	}

	cluster, cerr := s.finder.ClusterComputeResource(ctx, name)
	if cerr != nil {
		return nil, fmt.Errorf("failed to find resource pool or cluster %q: %w", name, err)
	}

	pool, err = cluster.ResourcePool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource pool of cluster %q: %w", name, err)
	}
	return pool, nil
}

// networkBacking probes the target network object and returns the adapter
// backing for it. Distributed portgroups and standard networks use mutually
// exclusive backing types, so the probe decides which one is built.
func (s *Session) networkBacking(ctx context.Context, name string) (types.BaseVirtualDeviceBackingInfo, error) {
	ref, err := s.finder.Network(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find network %q: %w", name, err)
	}

	switch network := ref.(type) {
	case *object.DistributedVirtualPortgroup:
		log.Printf("Network '%s' is a distributed portgroup, using distributed switch backing", name)
		backing, err := network.EthernetCardBackingInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build distributed portgroup backing for %q: %w", name, err)
		}
		return backing, nil
	default:
		log.Printf("Network '%s' is a standard network, using network name backing", name)
		backing, err := ref.EthernetCardBackingInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build network backing for %q: %w", name, err)
		}
		return backing, nil
	}
}

// initialDevices builds the device changes for phase one of creation:
// a SCSI controller, the boot disk bound to it, and the network adapter.
func initialDevices(ds types.ManagedObjectReference, backing types.BaseVirtualDeviceBackingInfo, diskSizeGB int, diskFormat, controllerType string) ([]types.BaseVirtualDeviceConfigSpec, error) {
	var devices object.VirtualDeviceList

	scsi, err := devices.CreateSCSIController(controllerType)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCSI controller of type %q: %w", controllerType, err)
	}
	devices = append(devices, scsi)

	disk := devices.CreateDisk(scsi.(types.BaseVirtualController), ds, "")
	disk.CapacityInKB = int64(diskSizeGB) * 1024 * 1024
	applyDiskFormat(disk, diskFormat)
	devices = append(devices, disk)

	// The adapter starts as the default card type; the hardware
	// configuration sequence upgrades it to vmxnet3 afterwards.
	nic, err := devices.CreateEthernetCard("e1000e", backing)
	if err != nil {
		return nil, fmt.Errorf("failed to create network adapter: %w", err)
	}
	devices = append(devices, nic)

	deviceChange, err := devices.ConfigSpec(types.VirtualDeviceConfigSpecOperationAdd)
	if err != nil {
		return nil, fmt.Errorf("failed to build device config: %w", err)
	}
	return deviceChange, nil
}

// applyDiskFormat sets the provisioning mode on a disk's flat backing.
func applyDiskFormat(disk *types.VirtualDisk, diskFormat string) {
	backing, ok := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo)
	if !ok {
		return
	}
	thin := diskFormat != "thick"
	backing.ThinProvisioned = types.NewBool(thin)
	backing.EagerlyScrub = types.NewBool(false)
}

// configureHardware applies the post-creation reconfiguration sequence.
// Each step is its own reconfigure round-trip so that a failure leaves the
// preceding steps applied.
func (s *Session) configureHardware(ctx context.Context, vm *object.VirtualMachine, spec *config.VMSpec) error {
	log.Printf("Pinning memory reservation to configured maximum...")
	if err := s.reconfigure(ctx, vm, types.VirtualMachineConfigSpec{
		MemoryReservationLockedToMax: types.NewBool(true),
	}); err != nil {
		return fmt.Errorf("failed to set memory reservation: %w", err)
	}

	log.Printf("Upgrading network adapter to vmxnet3...")
	if err := s.upgradeNetworkAdapter(ctx, vm); err != nil {
		return fmt.Errorf("failed to upgrade network adapter: %w", err)
	}

	log.Printf("Configuring video card (%d displays, %dKB video memory)...", spec.DisplayCount, spec.VideoMemKB)
	if err := s.configureVideoCard(ctx, vm, spec.DisplayCount, spec.VideoMemKB); err != nil {
		return fmt.Errorf("failed to configure video card: %w", err)
	}

	log.Printf("Disabling EFI secure boot...")
	if err := s.reconfigure(ctx, vm, types.VirtualMachineConfigSpec{
		BootOptions: &types.VirtualMachineBootOptions{
			EfiSecureBootEnabled: types.NewBool(false),
		},
	}); err != nil {
		return fmt.Errorf("failed to disable secure boot: %w", err)
	}

	if spec.HasGPUProfile() {
		log.Printf("Attaching vGPU profile '%s'...", spec.GPUProfile)
		if err := s.attachGPU(ctx, vm, spec.GPUProfile); err != nil {
			return fmt.Errorf("failed to attach vGPU profile %q: %w", spec.GPUProfile, err)
		}
	}

	log.Printf("Disabling CPU and memory hot-add...")
	if err := s.reconfigure(ctx, vm, types.VirtualMachineConfigSpec{
		CpuHotAddEnabled:    types.NewBool(false),
		MemoryHotAddEnabled: types.NewBool(false),
	}); err != nil {
		return fmt.Errorf("failed to disable hot-add: %w", err)
	}

	return nil
}

// reconfigure runs one Reconfigure task to completion.
func (s *Session) reconfigure(ctx context.Context, vm *object.VirtualMachine, spec types.VirtualMachineConfigSpec) error {
	task, err := vm.Reconfigure(ctx, spec)
	if err != nil {
		return err
	}
	return task.Wait(ctx)
}

// upgradeNetworkAdapter replaces the primary network adapter with a vmxnet3
// card on the same backing. Changing adapter type is a remove-and-add; the
// backing (and therefore the portgroup) is preserved.
func (s *Session) upgradeNetworkAdapter(ctx context.Context, vm *object.VirtualMachine) error {
	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to read VM devices: %w", err)
	}

	cards := devices.SelectByType((*types.VirtualEthernetCard)(nil))
	if len(cards) == 0 {
		return fmt.Errorf("VM has no network adapter")
	}

	current := cards[0]
	if _, ok := current.(*types.VirtualVmxnet3); ok {
		return nil
	}

	backing := current.GetVirtualDevice().Backing

	upgraded, err := object.VirtualDeviceList{}.CreateEthernetCard("vmxnet3", backing)
	if err != nil {
		return fmt.Errorf("failed to build vmxnet3 adapter: %w", err)
	}

	if err := vm.RemoveDevice(ctx, true, current); err != nil {
		return fmt.Errorf("failed to remove existing adapter: %w", err)
	}
	if err := vm.AddDevice(ctx, upgraded); err != nil {
		return fmt.Errorf("failed to add vmxnet3 adapter: %w", err)
	}
	return nil
}

// configureVideoCard edits the existing video card in place.
func (s *Session) configureVideoCard(ctx context.Context, vm *object.VirtualMachine, displays, videoMemKB int) error {
	devices, err := vm.Device(ctx)
	if err != nil {
		return fmt.Errorf("failed to read VM devices: %w", err)
	}

	found := devices.SelectByType((*types.VirtualMachineVideoCard)(nil))
	if len(found) == 0 {
		return fmt.Errorf("VM has no video card")
	}

	card := found[0].(*types.VirtualMachineVideoCard)
	card.NumDisplays = int32(displays)
	card.VideoRamSizeInKB = int64(videoMemKB)
	card.UseAutoDetect = types.NewBool(false)

	return s.reconfigure(ctx, vm, types.VirtualMachineConfigSpec{
		DeviceChange: []types.BaseVirtualDeviceConfigSpec{
			&types.VirtualDeviceConfigSpec{
				Operation: types.VirtualDeviceConfigSpecOperationEdit,
				Device:    card,
			},
		},
	})
}

// attachGPU adds a PCI passthrough device backed by the named vGPU profile.
func (s *Session) attachGPU(ctx context.Context, vm *object.VirtualMachine, profile string) error {
	gpu := &types.VirtualPCIPassthrough{
		VirtualDevice: types.VirtualDevice{
			Backing: &types.VirtualPCIPassthroughVmiopBackingInfo{
				Vgpu: profile,
			},
		},
	}
	return vm.AddDevice(ctx, gpu)
}
