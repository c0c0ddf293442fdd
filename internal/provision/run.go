// Package provision drives the create-or-reset workflow for a selected set
// of VMs: per-VM reconciliation against the hypervisor, optional
// registration in the deployment database, and the post-provision actions.
package provision

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/vmware/govmomi/object"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/deploydb"
	"github.com/gngordon/vmdeploy/internal/vsphere"
)

// Options are the run-wide toggles. They are fixed before the first VM is
// processed and never change mid-run.
type Options struct {
	// Register the VM in the deployment database after creation.
	Register bool
	// PauseForApps blocks for operator acknowledgment after each VM.
	PauseForApps bool
	// PowerOn starts each VM after processing.
	PowerOn bool
	// OpenConsole opens a remote console after power-on. Only effective
	// together with PowerOn.
	OpenConsole bool
	// DryRun reports every decision without performing any mutating
	// hypervisor or database call.
	DryRun bool
}

// Run processes the selected VMs in input order, one VM fully at a time.
//
// Per VM: reconcile (create or reset, decided by a single existence check);
// if registration is enabled and the VM was newly created, register its MAC
// in the deployment database (connecting lazily on first use); pause for the
// operator if requested; power on and optionally open a console.
//
// Any failure aborts the whole run. There is no per-VM isolation.
func Run(ctx context.Context, session *vsphere.Session, cfg *config.RunConfig, specs []config.VMSpec, opts Options, dbPrompt deploydb.CredentialPrompter) error {
	connect := func() (registry, error) {
		return deploydb.Connect(deploydb.Config{
			Server:         cfg.Database.Server,
			Port:           cfg.Database.Port,
			Database:       cfg.Database.Name,
			IntegratedAuth: cfg.Database.IntegratedAuth,
		}, dbPrompt)
	}

	return runWithDeps(ctx, specs, opts, runParams{
		ResourcePool:   cfg.VCenter.ResourcePool,
		DiskFormat:     cfg.VCenter.DiskFormat,
		ControllerType: cfg.VCenter.ControllerType,
	}, session, connect, waitForOperator)
}

// runParams are the hypervisor placement/storage parameters shared by every
// VM in the run.
type runParams struct {
	ResourcePool   string
	DiskFormat     string
	ControllerType string
}

// runWithDeps runs the workflow with injected dependencies.
// This allows for testing by accepting interfaces instead of concrete types.
func runWithDeps(ctx context.Context, specs []config.VMSpec, opts Options, params runParams, hv hypervisor, connect registryConnector, pause func() error) error {
	var gw registry
	defer func() {
		if gw != nil {
			if err := gw.Close(); err != nil {
				log.Printf("Warning: failed to close database connection: %v", err)
			}
		}
	}()

	for i := range specs {
		spec := &specs[i]

		log.Printf("Processing VM '%s' (%d of %d)...", spec.Name, i+1, len(specs))

		created, vm, err := reconcile(ctx, hv, spec, params, opts.DryRun)
		if err != nil {
			return err
		}

		if opts.Register && created {
			if opts.DryRun {
				log.Printf("[dry-run] Would register '%s' in the deployment database", spec.Name)
			} else {
				if gw == nil {
					gw, err = connect()
					if err != nil {
						return fmt.Errorf("failed to connect to deployment database: %w", err)
					}
				}
				if err := register(ctx, hv, gw, spec, vm); err != nil {
					return err
				}
			}
		}

		if opts.PauseForApps {
			if opts.DryRun {
				log.Printf("[dry-run] Would pause for manual application install")
			} else {
				fmt.Printf("Paused for manual steps on '%s'. Press Enter to continue...\n", spec.Name)
				if err := pause(); err != nil {
					return fmt.Errorf("failed to wait for operator: %w", err)
				}
			}
		}

		if opts.PowerOn {
			if err := powerOn(ctx, hv, spec.Name, vm, opts); err != nil {
				return err
			}
		}

		fmt.Printf("✓ VM '%s' processed\n", spec.Name)
	}

	return nil
}

// reconcile decides create-vs-reset for one VM. The existence check happens
// exactly once, before either branch; a VM is never both created and reset
// in the same run. The hypervisor operations are trusted to succeed or fail
// loudly; there is no post-hoc verification read.
func reconcile(ctx context.Context, hv hypervisor, spec *config.VMSpec, params runParams, dryRun bool) (created bool, vm *object.VirtualMachine, err error) {
	vm, err = hv.FindVM(ctx, spec.Name)
	if err != nil {
		return false, nil, err
	}

	if vm == nil {
		log.Printf("VM '%s' does not exist, creating", spec.Name)
		if dryRun {
			log.Printf("[dry-run] Would create VM '%s'", spec.Name)
			return true, nil, nil
		}
		vm, err = hv.CreateVM(ctx, spec, params.ResourcePool, params.DiskFormat, params.ControllerType)
		if err != nil {
			return false, nil, fmt.Errorf("failed to create VM '%s': %w", spec.Name, err)
		}
		return true, vm, nil
	}

	log.Printf("VM '%s' already exists, resetting", spec.Name)
	if dryRun {
		log.Printf("[dry-run] Would reset VM '%s'", spec.Name)
		return false, vm, nil
	}
	if err := hv.ResetVM(ctx, vm, spec.DiskSizeGB, params.DiskFormat, params.ControllerType); err != nil {
		return false, nil, fmt.Errorf("failed to reset VM '%s': %w", spec.Name, err)
	}
	return false, vm, nil
}

// register reconciles the deployment database record for a newly created VM
// against its MAC address. The lookup always precedes the insert, so the
// insert happens at most once per MAC.
func register(ctx context.Context, hv hypervisor, gw registry, spec *config.VMSpec, vm *object.VirtualMachine) error {
	mac, err := hv.MACAddress(ctx, vm)
	if err != nil {
		return fmt.Errorf("failed to read MAC address of '%s': %w", spec.Name, err)
	}

	log.Printf("Looking up %s in the deployment database...", mac)
	existing, err := gw.LookupByMAC(mac)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Printf("MAC %s is already registered (as '%s'), skipping insert", mac, existing.Description)
		return nil
	}

	log.Printf("Registering '%s' (%s) with task sequence %s...", spec.Name, mac, spec.TaskSequenceID)
	if err := gw.Register(spec.Name, mac, deploydb.DefaultSettings(spec.TaskSequenceID)); err != nil {
		return err
	}

	fmt.Printf("✓ Registered '%s' in the deployment database\n", spec.Name)
	return nil
}

// powerOn starts the VM and optionally opens a console for it.
func powerOn(ctx context.Context, hv hypervisor, name string, vm *object.VirtualMachine, opts Options) error {
	if opts.DryRun {
		log.Printf("[dry-run] Would power on '%s'", name)
		if opts.OpenConsole {
			log.Printf("[dry-run] Would open a console for '%s'", name)
		}
		return nil
	}

	log.Printf("Powering on '%s'...", name)
	if err := hv.PowerOn(ctx, vm); err != nil {
		return fmt.Errorf("failed to power on '%s': %w", name, err)
	}

	if opts.OpenConsole {
		url, err := hv.OpenConsole(ctx, vm)
		if err != nil {
			return fmt.Errorf("failed to open console for '%s': %w", name, err)
		}
		fmt.Printf("Console for '%s': %s\n", name, url)
	}

	return nil
}

// waitForOperator blocks until the operator presses Enter.
func waitForOperator() error {
	_, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return err
}
