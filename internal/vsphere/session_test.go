package vsphere

import (
	"context"
	"net/url"
	"testing"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/types"
)

// testSession builds a Session directly on a simulator client. The session
// cache is nil, so tests must not call Close.
func testSession(ctx context.Context, t *testing.T, c *vim25.Client) *Session {
	t.Helper()

	finder := find.NewFinder(c)
	dc, err := finder.DatacenterOrDefault(ctx, "")
	if err != nil {
		t.Fatalf("failed to find default datacenter: %v", err)
	}
	finder.SetDatacenter(dc)

	return &Session{client: c, finder: finder}
}

func TestCredentialVariants(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  []*url.Userinfo
	}{
		{
			name:  "no credentials",
			creds: Credentials{},
			want:  []*url.Userinfo{nil},
		},
		{
			name:  "username only",
			creds: Credentials{Username: "admin"},
			want:  []*url.Userinfo{nil, url.User("admin")},
		},
		{
			name:  "username and password",
			creds: Credentials{Username: "admin", Password: "secret"},
			want:  []*url.Userinfo{nil, url.User("admin"), url.UserPassword("admin", "secret")},
		},
		{
			name:  "password without username is ignored",
			creds: Credentials{Password: "secret"},
			want:  []*url.Userinfo{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := credentialVariants(tt.creds)
			if len(got) != len(tt.want) {
				t.Fatalf("credentialVariants() returned %d variants, want %d", len(got), len(tt.want))
			}
			for i := range got {
				gs, ws := "", ""
				if got[i] != nil {
					gs = got[i].String()
				}
				if tt.want[i] != nil {
					ws = tt.want[i].String()
				}
				if gs != ws {
					t.Errorf("variant %d = %q, want %q", i, gs, ws)
				}
			}
		})
	}
}

func TestConnect_InvalidEndpoint(t *testing.T) {
	_, err := Connect(context.Background(), "://not a url", "", Credentials{}, true)
	if err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}

func TestFindVM(t *testing.T) {
	simulator.Test(func(ctx context.Context, c *vim25.Client) {
		s := testSession(ctx, t, c)

		vm, err := s.FindVM(ctx, "DC0_H0_VM0")
		if err != nil {
			t.Fatalf("FindVM() error = %v", err)
		}
		if vm == nil {
			t.Fatal("FindVM() returned nil for an existing VM")
		}
		if vm.Name() != "DC0_H0_VM0" {
			t.Errorf("FindVM() name = %q, want %q", vm.Name(), "DC0_H0_VM0")
		}
	})
}

func TestFindVM_AbsenceIsNotAnError(t *testing.T) {
	simulator.Test(func(ctx context.Context, c *vim25.Client) {
		s := testSession(ctx, t, c)

		vm, err := s.FindVM(ctx, "no-such-vm")
		if err != nil {
			t.Fatalf("FindVM() error = %v, want nil for a missing VM", err)
		}
		if vm != nil {
			t.Errorf("FindVM() = %v, want nil for a missing VM", vm)
		}
	})
}

func TestAbout(t *testing.T) {
	simulator.Test(func(ctx context.Context, c *vim25.Client) {
		s := testSession(ctx, t, c)

		about := s.About()
		if about.ApiType == "" {
			t.Error("About() returned empty ApiType")
		}
	})
}

func TestClose_NilSession(t *testing.T) {
	var s *Session
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Close() on nil session error = %v", err)
	}
}

func TestApplyDiskFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantThin bool
	}{
		{"thin", "thin", true},
		{"thick", "thick", false},
		{"default is thin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disk := &types.VirtualDisk{
				VirtualDevice: types.VirtualDevice{
					Backing: &types.VirtualDiskFlatVer2BackingInfo{},
				},
			}
			applyDiskFormat(disk, tt.format)

			backing := disk.Backing.(*types.VirtualDiskFlatVer2BackingInfo)
			if backing.ThinProvisioned == nil || *backing.ThinProvisioned != tt.wantThin {
				t.Errorf("ThinProvisioned = %v, want %v", backing.ThinProvisioned, tt.wantThin)
			}
		})
	}
}
