package provision

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/deploydb"
)

// testVM builds an opaque VM handle for mock returns. The reconciler never
// dereferences the handle, so no client is attached.
func testVM(name string) *object.VirtualMachine {
	return object.NewVirtualMachine(nil, types.ManagedObjectReference{
		Type:  "VirtualMachine",
		Value: "vm-" + name,
	})
}

// mockHypervisor is a mock implementation of the hypervisor interface.
type mockHypervisor struct {
	// Configurable behavior
	findVMFunc      func(name string) (*object.VirtualMachine, error)
	createVMFunc    func(spec *config.VMSpec) (*object.VirtualMachine, error)
	resetVMFunc     func(vm *object.VirtualMachine) error
	macAddressFunc  func(vm *object.VirtualMachine) (string, error)
	powerOnFunc     func(vm *object.VirtualMachine) error
	openConsoleFunc func(vm *object.VirtualMachine) (string, error)

	// Call tracking
	findVMCalls      []string
	createVMCalls    []string
	resetVMCalls     []string
	macAddressCalls  int
	powerOnCalls     int
	openConsoleCalls int
}

// newMockHypervisor creates a mock on which no VM exists and every
// operation succeeds.
func newMockHypervisor() *mockHypervisor {
	m := &mockHypervisor{}

	m.findVMFunc = func(name string) (*object.VirtualMachine, error) {
		return nil, nil
	}
	m.createVMFunc = func(spec *config.VMSpec) (*object.VirtualMachine, error) {
		return testVM(spec.Name), nil
	}
	m.resetVMFunc = func(vm *object.VirtualMachine) error {
		return nil
	}
	m.macAddressFunc = func(vm *object.VirtualMachine) (string, error) {
		return "00:50:56:AB:CD:EF", nil
	}
	m.powerOnFunc = func(vm *object.VirtualMachine) error {
		return nil
	}
	m.openConsoleFunc = func(vm *object.VirtualMachine) (string, error) {
		return "wss://vcenter.example.com:443/ticket/test", nil
	}

	return m
}

func (m *mockHypervisor) FindVM(ctx context.Context, name string) (*object.VirtualMachine, error) {
	m.findVMCalls = append(m.findVMCalls, name)
	return m.findVMFunc(name)
}

func (m *mockHypervisor) CreateVM(ctx context.Context, spec *config.VMSpec, resourcePool, diskFormat, controllerType string) (*object.VirtualMachine, error) {
	m.createVMCalls = append(m.createVMCalls, spec.Name)
	return m.createVMFunc(spec)
}

func (m *mockHypervisor) ResetVM(ctx context.Context, vm *object.VirtualMachine, diskSizeGB int, diskFormat, controllerType string) error {
	m.resetVMCalls = append(m.resetVMCalls, vm.Reference().Value)
	return m.resetVMFunc(vm)
}

func (m *mockHypervisor) MACAddress(ctx context.Context, vm *object.VirtualMachine) (string, error) {
	m.macAddressCalls++
	return m.macAddressFunc(vm)
}

func (m *mockHypervisor) PowerOn(ctx context.Context, vm *object.VirtualMachine) error {
	m.powerOnCalls++
	return m.powerOnFunc(vm)
}

func (m *mockHypervisor) OpenConsole(ctx context.Context, vm *object.VirtualMachine) (string, error) {
	m.openConsoleCalls++
	return m.openConsoleFunc(vm)
}

// mockRegistry is a mock implementation of the registry interface backed by
// an in-memory MAC table.
type mockRegistry struct {
	// Configurable behavior
	lookupFunc   func(mac string) (*deploydb.Identity, error)
	registerFunc func(description, mac string) error

	// records simulates the database; Register inserts into it.
	records map[string]*deploydb.Identity

	// Call tracking
	lookupCalls      []string
	registerCalls    []string
	registerSettings []deploydb.Settings
	closed           bool
}

func newMockRegistry() *mockRegistry {
	m := &mockRegistry{records: make(map[string]*deploydb.Identity)}

	m.lookupFunc = func(mac string) (*deploydb.Identity, error) {
		return m.records[mac], nil
	}
	m.registerFunc = func(description, mac string) error {
		if _, exists := m.records[mac]; exists {
			return fmt.Errorf("duplicate MAC %s", mac)
		}
		m.records[mac] = deploydb.NewIdentity(mac, description)
		return nil
	}

	return m
}

func (m *mockRegistry) LookupByMAC(mac string) (*deploydb.Identity, error) {
	m.lookupCalls = append(m.lookupCalls, mac)
	return m.lookupFunc(mac)
}

func (m *mockRegistry) Register(description, mac string, settings deploydb.Settings) error {
	m.registerCalls = append(m.registerCalls, mac)
	m.registerSettings = append(m.registerSettings, settings)
	return m.registerFunc(description, mac)
}

func (m *mockRegistry) Close() error {
	m.closed = true
	return nil
}
