// Package ui provides the interactive run selection: which VMs to process
// and the final value of each run-wide toggle.
package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/provision"
)

// Selection is the outcome of the interactive prompts: an ordered subset of
// VM names plus the resolved toggles.
type Selection struct {
	Names   []string
	Options provision.Options
}

// Select prompts for the VMs to process and the run-wide toggles, seeding
// the toggles from the configured defaults. The returned name order follows
// the VM list, not the order the operator toggled them in.
func Select(specs []config.VMSpec, defaults config.ToggleDefaults) (*Selection, error) {
	options := make([]huh.Option[string], 0, len(specs))
	for _, spec := range specs {
		label := fmt.Sprintf("%s (%d vCPU, %dGB mem, %dGB disk, %s)",
			spec.Name, spec.CPUCount, spec.MemoryGB, spec.DiskSizeGB, spec.GuestID)
		options = append(options, huh.NewOption(label, spec.Name))
	}

	sel := Selection{
		Options: provision.Options{
			Register:     defaults.Register,
			PauseForApps: defaults.PauseForApps,
			PowerOn:      defaults.PowerOn,
			OpenConsole:  defaults.OpenConsole,
			DryRun:       defaults.DryRun,
		},
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Virtual Machines").
				Description("Select the VMs to create or reset").
				Options(options...).
				Value(&sel.Names).
				Validate(func(names []string) error {
					if len(names) == 0 {
						return fmt.Errorf("select at least one VM")
					}
					return nil
				}),
		).Title("VM Selection"),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Register in deployment database?").
				Value(&sel.Options.Register),
			huh.NewConfirm().
				Title("Pause for manual application install?").
				Value(&sel.Options.PauseForApps),
			huh.NewConfirm().
				Title("Power on after processing?").
				Value(&sel.Options.PowerOn),
			huh.NewConfirm().
				Title("Open remote console after power-on?").
				Value(&sel.Options.OpenConsole),
			huh.NewConfirm().
				Title("Rehearsal (report decisions without changing anything)?").
				Value(&sel.Options.DryRun),
		).Title("Run Options"),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	return &sel, nil
}
