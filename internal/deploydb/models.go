package deploydb

import "github.com/google/uuid"

// Identity is a machine identity record keyed by MAC address. The MAC is
// stored uppercase and colon-delimited and is the primary deduplication key.
type Identity struct {
	ID          uuid.UUID `gorm:"type:uniqueidentifier;primaryKey"`
	MACAddress  string    `gorm:"uniqueIndex;not null"`
	Description string
}

func (Identity) TableName() string { return "computer_identities" }

// NewIdentity builds an identity record with a freshly generated key.
func NewIdentity(mac, description string) *Identity {
	return &Identity{
		ID:          uuid.New(),
		MACAddress:  mac,
		Description: description,
	}
}

// Settings is the deployment settings record for a registered machine. The
// flag set is fixed and known, so it is a typed record rather than an
// open-ended key/value map.
type Settings struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	IdentityID       uuid.UUID `gorm:"type:uniqueidentifier;not null;index"`
	TaskSequenceID   string    `gorm:"not null"`
	OSInstall        string    `gorm:"not null"`
	SkipApplications bool      `gorm:"not null"`
	SkipTaskSequence bool      `gorm:"not null"`
}

func (Settings) TableName() string { return "machine_settings" }

// DefaultSettings returns the fixed provisioning flags used for every
// machine this workflow registers: run the given task sequence as a full OS
// install, without skipping applications or the sequence itself.
func DefaultSettings(taskSequenceID string) Settings {
	return Settings{
		TaskSequenceID:   taskSequenceID,
		OSInstall:        "YES",
		SkipApplications: false,
		SkipTaskSequence: false,
	}
}
