package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testVMListHeader = "Name,TaskSeq,Datastore,Network,Folder,Disk,Mem,CPU,Displays,VideoMem,HWVersion,GuestId,GPUProfile"

func writeVMList(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vms.csv")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test VM list: %v", err)
	}
	return path
}

func TestLoadVMList_ValidList(t *testing.T) {
	path := writeVMList(t,
		testVMListHeader,
		"W10-01,TS001,ds01,VM Network,Workstations,60,8,4,2,16384,vmx-19,windows10Guest,false",
		"SRV-01,TS002,ds02,DSwitch-PG,Servers,120,16,8,1,8192,vmx-19,windows2019srv_64Guest,grid_p4-2q",
	)

	specs, err := LoadVMList(path)
	if err != nil {
		t.Fatalf("LoadVMList failed: %v", err)
	}

	if len(specs) != 2 {
		t.Fatalf("Expected 2 specs, got %d", len(specs))
	}

	first := specs[0]
	if first.Name != "W10-01" {
		t.Errorf("Expected name 'W10-01', got %q", first.Name)
	}
	if first.TaskSequenceID != "TS001" {
		t.Errorf("Expected task sequence 'TS001', got %q", first.TaskSequenceID)
	}
	if first.DiskSizeGB != 60 || first.MemoryGB != 8 || first.CPUCount != 4 {
		t.Errorf("Numeric fields wrong: %+v", first)
	}
	if first.HasGPUProfile() {
		t.Error("Expected 'false' GPU profile to be treated as no GPU")
	}

	second := specs[1]
	if !second.HasGPUProfile() {
		t.Error("Expected GPU profile 'grid_p4-2q' to be detected")
	}
	if second.Network != "DSwitch-PG" {
		t.Errorf("Expected network 'DSwitch-PG', got %q", second.Network)
	}
}

func TestLoadVMList_WithoutGPUColumn(t *testing.T) {
	path := writeVMList(t,
		strings.TrimSuffix(testVMListHeader, ",GPUProfile"),
		"W10-01,TS001,ds01,VM Network,Workstations,60,8,4,2,16384,vmx-19,windows10Guest",
	)

	specs, err := LoadVMList(path)
	if err != nil {
		t.Fatalf("LoadVMList failed: %v", err)
	}
	if specs[0].HasGPUProfile() {
		t.Error("Expected no GPU profile when the column is absent")
	}
}

func TestLoadVMList_PreservesInputOrder(t *testing.T) {
	path := writeVMList(t,
		testVMListHeader,
		"ZZZ-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
		"AAA-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
		"MMM-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
	)

	specs, err := LoadVMList(path)
	if err != nil {
		t.Fatalf("LoadVMList failed: %v", err)
	}

	want := []string{"ZZZ-01", "AAA-01", "MMM-01"}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("Position %d: expected %q, got %q", i, name, specs[i].Name)
		}
	}
}

func TestLoadVMList_InvalidLists(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{
			"duplicate names",
			[]string{
				testVMListHeader,
				"W10-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
				"W10-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
			},
		},
		{
			"empty name",
			[]string{
				testVMListHeader,
				",TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
			},
		},
		{
			"zero disk size",
			[]string{
				testVMListHeader,
				"W10-01,TS001,ds01,net,f,0,8,4,2,16384,vmx-19,windows10Guest,",
			},
		},
		{
			"non-numeric cpu",
			[]string{
				testVMListHeader,
				"W10-01,TS001,ds01,net,f,60,8,four,2,16384,vmx-19,windows10Guest,",
			},
		},
		{
			"wrong header",
			[]string{
				"Hostname,TaskSeq,Datastore,Network,Folder,Disk,Mem,CPU,Displays,VideoMem,HWVersion,GuestId,GPUProfile",
				"W10-01,TS001,ds01,net,f,60,8,4,2,16384,vmx-19,windows10Guest,",
			},
		},
		{
			"header only",
			[]string{testVMListHeader},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeVMList(t, tt.lines...)
			if _, err := LoadVMList(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestFilterByNames(t *testing.T) {
	specs := []VMSpec{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	}

	filtered, err := FilterByNames(specs, []string{"C", "A"})
	if err != nil {
		t.Fatalf("FilterByNames failed: %v", err)
	}

	// Selection order does not matter; list order wins.
	if len(filtered) != 2 || filtered[0].Name != "A" || filtered[1].Name != "C" {
		t.Errorf("Expected [A C], got %+v", filtered)
	}
}

func TestFilterByNames_UnknownName(t *testing.T) {
	specs := []VMSpec{{Name: "A"}}
	if _, err := FilterByNames(specs, []string{"A", "nope"}); err == nil {
		t.Error("Expected error for unknown selection name, got nil")
	}
}
