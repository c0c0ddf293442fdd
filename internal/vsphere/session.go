// Package vsphere wraps a govmomi connection and provides the VM lifecycle
// operations used by the provisioning workflow.
package vsphere

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/session/cache"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// maxConnectAttempts bounds the credential escalation in Connect. A failure
// here is fatal to the run, so there is no point retrying forever.
const maxConnectAttempts = 3

// Credentials carries the optional vCenter username and password supplied
// out-of-band (flags or interactive prompt).
type Credentials struct {
	Username string
	Password string
}

// Session holds one authenticated connection to a vCenter endpoint.
// It is created once per run and shared by all VM iterations; it is not safe
// for concurrent use.
type Session struct {
	client  *vim25.Client
	session *cache.Session
	finder  *find.Finder
}

// Connect establishes a connection to the vCenter endpoint, trying up to
// three credential variants in priority order: no credentials (reuse a
// cached SDK session), username only, then username plus password. Each
// failed attempt is reported before the next one. If every attempt fails the
// returned error is fatal to the run.
func Connect(ctx context.Context, endpoint, datacenter string, creds Credentials, insecure bool) (*Session, error) {
	base, err := soap.ParseURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vCenter endpoint %q: %w", endpoint, err)
	}

	var lastErr error
	for i, user := range credentialVariants(creds) {
		u := *base
		u.User = user

		log.Printf("Connecting to %s (attempt %d/%d)...", base.Host, i+1, maxConnectAttempts)

		s, err := connectOnce(ctx, &u, datacenter, insecure)
		if err == nil {
			return s, nil
		}

		lastErr = err
		log.Printf("Warning: connection attempt %d/%d failed: %v", i+1, maxConnectAttempts, err)
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", base.Host, maxConnectAttempts, lastErr)
}

// credentialVariants returns the userinfo values to try, in priority order.
// Variants that need an absent username or password are dropped, so the
// total is at most maxConnectAttempts.
func credentialVariants(creds Credentials) []*url.Userinfo {
	variants := []*url.Userinfo{nil}
	if creds.Username != "" {
		variants = append(variants, url.User(creds.Username))
		if creds.Password != "" {
			variants = append(variants, url.UserPassword(creds.Username, creds.Password))
		}
	}
	return variants
}

// connectOnce performs a single login attempt through the SDK session cache,
// which also covers the no-credential case by reusing a previously cached
// session ticket.
func connectOnce(ctx context.Context, u *url.URL, datacenter string, insecure bool) (*Session, error) {
	sc := &cache.Session{URL: u, Insecure: insecure}

	c := new(vim25.Client)
	if err := sc.Login(ctx, c, nil); err != nil {
		return nil, err
	}

	finder := find.NewFinder(c)

	dc, err := finder.DatacenterOrDefault(ctx, datacenter)
	if err != nil {
		_ = sc.Logout(ctx, c)
		return nil, fmt.Errorf("failed to find datacenter: %w", err)
	}
	finder.SetDatacenter(dc)

	return &Session{client: c, session: sc, finder: finder}, nil
}

// Close logs out and releases the connection. It is safe to call Close
// multiple times.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	if err := s.session.Logout(ctx, s.client); err != nil {
		return fmt.Errorf("failed to log out of vCenter: %w", err)
	}
	s.client = nil

	return nil
}

// About returns endpoint identification for connection testing.
func (s *Session) About() types.AboutInfo {
	return s.client.ServiceContent.About
}

// FindVM looks up a VM by name. Absence is a normal outcome: a nil VM with a
// nil error means the VM does not exist on this endpoint.
func (s *Session) FindVM(ctx context.Context, name string) (*object.VirtualMachine, error) {
	vm, err := s.finder.VirtualMachine(ctx, name)
	if err != nil {
		var notFound *find.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up VM %q: %w", name, err)
	}
	return vm, nil
}
