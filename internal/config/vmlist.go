package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// VMSpec is one row of the VM list table. It is immutable once loaded;
// Name is the unique key across the run.
type VMSpec struct {
	Name            string
	TaskSequenceID  string
	Datastore       string
	Network         string
	Folder          string
	DiskSizeGB      int
	MemoryGB        int
	CPUCount        int
	DisplayCount    int
	VideoMemKB      int
	HardwareVersion string
	GuestID         string
	GPUProfile      string // empty or "false" means no vGPU
}

// HasGPUProfile reports whether the spec requests a vGPU device.
// The values "" and "false" are sentinels for "no GPU".
func (s *VMSpec) HasGPUProfile() bool {
	return s.GPUProfile != "" && !strings.EqualFold(s.GPUProfile, "false")
}

// vmListHeader is the expected column order of the VM list table.
// The GPUProfile column is optional for compatibility with older lists.
var vmListHeader = []string{
	"Name", "TaskSeq", "Datastore", "Network", "Folder", "Disk", "Mem",
	"CPU", "Displays", "VideoMem", "HWVersion", "GuestId", "GPUProfile",
}

// LoadVMList loads the VM list from a comma-delimited table with a header
// row. Rows keep their input order; that order drives run iteration.
func LoadVMList(path string) ([]VMSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open VM list: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse VM list: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("VM list is empty")
	}

	if err := validateHeader(records[0]); err != nil {
		return nil, err
	}

	specs := make([]VMSpec, 0, len(records)-1)
	seen := make(map[string]bool)
	for i, row := range records[1:] {
		spec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("VM list row %d: %w", i+2, err)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("VM list row %d: duplicate name %q", i+2, spec.Name)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("VM list contains no VM rows")
	}

	return specs, nil
}

// validateHeader checks the header row against the expected columns.
func validateHeader(header []string) error {
	// 12 columns is accepted for lists without the GPUProfile column.
	if len(header) != len(vmListHeader) && len(header) != len(vmListHeader)-1 {
		return fmt.Errorf("VM list header has %d columns, want %d (or %d without GPUProfile)",
			len(header), len(vmListHeader), len(vmListHeader)-1)
	}
	for i, want := range vmListHeader[:len(header)] {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("VM list header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

// parseRow converts one table row into a VMSpec and validates it.
func parseRow(row []string) (VMSpec, error) {
	if len(row) != len(vmListHeader) && len(row) != len(vmListHeader)-1 {
		return VMSpec{}, fmt.Errorf("row has %d columns, want %d", len(row), len(vmListHeader))
	}

	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	spec := VMSpec{
		Name:            row[0],
		TaskSequenceID:  row[1],
		Datastore:       row[2],
		Network:         row[3],
		Folder:          row[4],
		HardwareVersion: row[10],
		GuestID:         row[11],
	}
	if len(row) == len(vmListHeader) {
		spec.GPUProfile = row[12]
	}

	var err error
	if spec.DiskSizeGB, err = parsePositiveInt("Disk", row[5]); err != nil {
		return VMSpec{}, err
	}
	if spec.MemoryGB, err = parsePositiveInt("Mem", row[6]); err != nil {
		return VMSpec{}, err
	}
	if spec.CPUCount, err = parsePositiveInt("CPU", row[7]); err != nil {
		return VMSpec{}, err
	}
	if spec.DisplayCount, err = parsePositiveInt("Displays", row[8]); err != nil {
		return VMSpec{}, err
	}
	if spec.VideoMemKB, err = parsePositiveInt("VideoMem", row[9]); err != nil {
		return VMSpec{}, err
	}

	if err := spec.Validate(); err != nil {
		return VMSpec{}, err
	}

	return spec, nil
}

// Validate checks the non-numeric fields of a spec.
func (s *VMSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Datastore == "" {
		return fmt.Errorf("datastore is required")
	}
	if s.Network == "" {
		return fmt.Errorf("network is required")
	}
	if s.GuestID == "" {
		return fmt.Errorf("guest id is required")
	}
	return nil
}

// parsePositiveInt parses a column value that must be a positive integer.
func parsePositiveInt(column, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", column, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("column %s: must be > 0, got %d", column, n)
	}
	return n, nil
}

// FilterByNames returns the specs whose names appear in the selection,
// preserving the input-order of the list. Unknown names are an error so a
// typo in a selection does not silently shrink the run.
func FilterByNames(specs []VMSpec, names []string) ([]VMSpec, error) {
	selected := make(map[string]bool, len(names))
	for _, name := range names {
		selected[name] = true
	}

	var out []VMSpec
	for _, spec := range specs {
		if selected[spec.Name] {
			out = append(out, spec)
			delete(selected, spec.Name)
		}
	}

	if len(selected) > 0 {
		var missing []string
		for name := range selected {
			missing = append(missing, name)
		}
		return nil, fmt.Errorf("selection names not present in VM list: %s", strings.Join(missing, ", "))
	}

	return out, nil
}
