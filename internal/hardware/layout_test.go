package hardware

import "testing"

func TestDerive_DesktopGuests(t *testing.T) {
	tests := []struct {
		name       string
		cpuCount   int
		guestID    string
		wantLayout Layout
	}{
		{"even count splits across two sockets", 4, "windows10Guest", Layout{Sockets: 2, CoresPerSocket: 2}},
		{"even count 8", 8, "windows11_64Guest", Layout{Sockets: 2, CoresPerSocket: 4}},
		{"even count 2", 2, "windows10Guest", Layout{Sockets: 2, CoresPerSocket: 1}},
		{"odd count stays on one socket", 3, "windows10Guest", Layout{Sockets: 1, CoresPerSocket: 3}},
		{"single cpu", 1, "windows10Guest", Layout{Sockets: 1, CoresPerSocket: 1}},
		{"odd count 5", 5, "otherLinux64Guest", Layout{Sockets: 1, CoresPerSocket: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.cpuCount, tt.guestID)
			if got != tt.wantLayout {
				t.Errorf("Derive(%d, %q) = %+v, want %+v", tt.cpuCount, tt.guestID, got, tt.wantLayout)
			}
		})
	}
}

func TestDerive_ServerGuests(t *testing.T) {
	// Server guests always get a single socket, even for even counts.
	tests := []struct {
		name     string
		cpuCount int
		guestID  string
	}{
		{"srv hint", 4, "windows2019srv_64Guest"},
		{"srv hint uppercase", 8, "WINDOWS2022SRVNEXT_64GUEST"},
		{"server hint", 6, "windows8Server64Guest"},
		{"server hint odd count", 3, "centos8ServerGuest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.cpuCount, tt.guestID)
			want := Layout{Sockets: 1, CoresPerSocket: tt.cpuCount}
			if got != want {
				t.Errorf("Derive(%d, %q) = %+v, want %+v", tt.cpuCount, tt.guestID, got, want)
			}
		})
	}
}

func TestDerive_CoresTimesSocketsEqualsCount(t *testing.T) {
	// The derived layout must always account for every requested vCPU.
	for count := 1; count <= 64; count++ {
		for _, guestID := range []string{"windows10Guest", "windows2019srv_64Guest"} {
			layout := Derive(count, guestID)
			if layout.Sockets*layout.CoresPerSocket != count {
				t.Errorf("Derive(%d, %q): %d sockets x %d cores != %d vCPUs",
					count, guestID, layout.Sockets, layout.CoresPerSocket, count)
			}
		}
	}
}
