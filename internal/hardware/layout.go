// Package hardware derives CPU socket topology for new virtual machines.
//
// vSphere expresses CPU sizing as a total vCPU count plus a cores-per-socket
// value. Desktop guests get a two-socket layout that mimics physical
// workstations; server guests are licensed and scheduled per socket, so they
// always get a single socket with all cores on it.
package hardware

import "strings"

// Layout is the derived socket topology for a VM.
type Layout struct {
	Sockets        int
	CoresPerSocket int
}

// serverGuestHints are matched case-insensitively against the guest OS
// identifier to detect server guests (e.g. "windows2019srv_64Guest",
// "windows2022srvNext_64Guest").
var serverGuestHints = []string{"srv", "server"}

// Derive computes the socket layout for a requested vCPU count and guest OS
// identifier.
//
// Rules:
//   - even count: two sockets, count/2 cores each
//   - odd count: one socket with all cores
//   - server guest (id contains "srv" or "server"): one socket with all
//     cores, regardless of parity
//
// Derive is pure and total over positive counts.
func Derive(cpuCount int, guestID string) Layout {
	if isServerGuest(guestID) || cpuCount%2 != 0 {
		return Layout{Sockets: 1, CoresPerSocket: cpuCount}
	}
	return Layout{Sockets: 2, CoresPerSocket: cpuCount / 2}
}

// isServerGuest reports whether the guest OS identifier names a server OS.
func isServerGuest(guestID string) bool {
	id := strings.ToLower(guestID)
	for _, hint := range serverGuestHints {
		if strings.Contains(id, hint) {
			return true
		}
	}
	return false
}
