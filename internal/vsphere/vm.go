package vsphere

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
)

// MACAddress reads the hardware address of the VM's primary network adapter,
// normalized to uppercase colon-delimited form.
func (s *Session) MACAddress(ctx context.Context, vm *object.VirtualMachine) (string, error) {
	devices, err := vm.Device(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read VM devices: %w", err)
	}

	cards := devices.SelectByType((*types.VirtualEthernetCard)(nil))
	if len(cards) == 0 {
		return "", fmt.Errorf("VM has no network adapter")
	}

	card := cards[0].(types.BaseVirtualEthernetCard).GetVirtualEthernetCard()
	if card.MacAddress == "" {
		return "", fmt.Errorf("primary network adapter has no MAC address assigned")
	}

	return strings.ToUpper(card.MacAddress), nil
}

// PowerOn starts the VM. Fire-and-forget: no state is tracked afterwards.
func (s *Session) PowerOn(ctx context.Context, vm *object.VirtualMachine) error {
	task, err := vm.PowerOn(ctx)
	if err != nil {
		return fmt.Errorf("failed to power on VM: %w", err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("failed to power on VM: %w", err)
	}
	return nil
}

// OpenConsole acquires a browser console ticket for the VM and returns the
// console URL for the operator to open.
func (s *Session) OpenConsole(ctx context.Context, vm *object.VirtualMachine) (string, error) {
	ticket, err := vm.AcquireTicket(ctx, string(types.VirtualMachineTicketTypeWebmks))
	if err != nil {
		return "", fmt.Errorf("failed to acquire console ticket: %w", err)
	}
	return fmt.Sprintf("wss://%s:%d/ticket/%s", ticket.Host, ticket.Port, ticket.Ticket), nil
}
