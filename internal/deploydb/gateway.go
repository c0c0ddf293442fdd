// Package deploydb manages the connection to the deployment database and the
// idempotent registration of machines for network-boot OS deployment.
//
// The database is the sole source of truth for "already registered": callers
// always look a MAC address up before inserting, and an insert is performed
// at most once per MAC.
package deploydb

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config describes the deployment database endpoint.
type Config struct {
	Server         string
	Port           int
	Database       string
	IntegratedAuth bool // use the process identity; never prompts
}

// CredentialPrompter supplies a username and password for an authentication
// attempt. It is called again after every failed connection attempt when
// integrated authentication is not configured.
type CredentialPrompter func() (username, password string, err error)

// Gateway holds one open connection to the deployment database.
// It is created lazily, at most once per run, and is not safe for
// concurrent use.
type Gateway struct {
	db *gorm.DB
}

// Connect opens a connection to the deployment database, retrying until it
// succeeds. Unlike the hypervisor connection this retries indefinitely: the
// run cannot proceed without registration once it was requested, and the
// operator is present to supply working credentials. After each failure the
// previously supplied username is discarded so the prompter asks again.
func Connect(cfg Config, prompt CredentialPrompter) (*Gateway, error) {
	return connectWithOpener(cfg, prompt, open)
}

// connectWithOpener implements the retry loop with an injected opener.
// This allows for testing without a reachable database.
func connectWithOpener(cfg Config, prompt CredentialPrompter, open func(Config, string, string) (*gorm.DB, error)) (*Gateway, error) {
	var username, password string

	for attempt := 1; ; attempt++ {
		if !cfg.IntegratedAuth && username == "" {
			var err error
			username, password, err = prompt()
			if err != nil {
				return nil, fmt.Errorf("failed to read database credentials: %w", err)
			}
		}

		log.Printf("Connecting to deployment database %s/%s (attempt %d)...", cfg.Server, cfg.Database, attempt)

		db, err := open(cfg, username, password)
		if err == nil {
			return &Gateway{db: db}, nil
		}

		log.Printf("Warning: database connection attempt %d failed: %v", attempt, err)

		// Drop the username so the operator is re-prompted. Integrated
		// auth has nothing to re-prompt for and just retries.
		username = ""
		password = ""
	}
}

// open performs a single connection attempt.
func open(cfg Config, username, password string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlserver.Open(dsn(cfg, username, password)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// gorm defers dialing; force a round-trip so a bad endpoint or bad
	// credentials fail here, inside the retry loop.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// dsn builds the sqlserver connection string. Without a username the driver
// uses integrated authentication.
func dsn(cfg Config, username, password string) string {
	if username == "" {
		return fmt.Sprintf("sqlserver://%s:%d?database=%s", cfg.Server, cfg.Port, cfg.Database)
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", username, password, cfg.Server, cfg.Port, cfg.Database)
}

// Close releases the database connection. Safe to call on a nil gateway.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LookupByMAC returns the identity record for a MAC address, or nil if none
// exists. Absence is a normal outcome, not an error. The empty sentinel MAC
// "00:00:00:00:00:00" is a legal, if unlikely, query value.
func (g *Gateway) LookupByMAC(mac string) (*Identity, error) {
	var identity Identity
	err := g.db.Where("mac_address = ?", mac).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up MAC %s: %w", mac, err)
	}
	return &identity, nil
}

// Register inserts the identity record for a machine and then its deployment
// settings referencing the generated identity key. The two writes are
// sequential and not wrapped in a transaction; a failure between them leaves
// an orphaned identity record, an accepted risk for this operator-supervised
// workflow. Callers must perform LookupByMAC first.
func (g *Gateway) Register(description, mac string, settings Settings) error {
	identity := NewIdentity(mac, description)
	if err := g.db.Create(identity).Error; err != nil {
		return fmt.Errorf("failed to insert identity record for %s: %w", mac, err)
	}

	settings.IdentityID = identity.ID
	if err := g.db.Create(&settings).Error; err != nil {
		return fmt.Errorf("failed to insert settings record for %s: %w", mac, err)
	}

	return nil
}
