// Package config loads and validates the run configuration and the VM list
// table that drive a provisioning run.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunConfig is the run-wide configuration loaded from a YAML file.
type RunConfig struct {
	VCenter  VCenterConfig  `yaml:"vcenter"`
	Database DatabaseConfig `yaml:"database"`
	Defaults ToggleDefaults `yaml:"defaults"`
}

// VCenterConfig describes the hypervisor management endpoint and the
// placement/storage parameters shared by every VM in the run.
type VCenterConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Datacenter     string `yaml:"datacenter,omitempty"`
	ResourcePool   string `yaml:"resource_pool"`
	ControllerType string `yaml:"controller_type,omitempty"` // SCSI controller type (default: "pvscsi")
	DiskFormat     string `yaml:"disk_format,omitempty"`     // "thin" or "thick" (default: "thin")
	Insecure       bool   `yaml:"insecure,omitempty"`        // Skip TLS certificate verification
}

// DatabaseConfig describes the deployment database endpoint.
type DatabaseConfig struct {
	Server         string `yaml:"server"`
	Port           int    `yaml:"port,omitempty"` // Default: 1433
	Name           string `yaml:"name"`
	IntegratedAuth bool   `yaml:"integrated_auth,omitempty"` // Use the process identity; never prompts
}

// ToggleDefaults supplies the default values for the run-wide toggles.
// The selection UI or command-line flags may override each of them.
type ToggleDefaults struct {
	Register     bool `yaml:"register"`
	PauseForApps bool `yaml:"pause_for_apps"`
	PowerOn      bool `yaml:"power_on"`
	OpenConsole  bool `yaml:"open_console"`
	DryRun       bool `yaml:"dry_run"`
}

// validControllerTypes are the SCSI controller types accepted by the
// hypervisor device builder.
var validControllerTypes = map[string]bool{
	"pvscsi":       true,
	"lsilogic":     true,
	"lsilogic-sas": true,
	"buslogic":     true,
}

// Normalize fills in defaults and sanitizes user input.
// This is called automatically by LoadRunConfig before validation.
func (c *RunConfig) Normalize() {
	c.VCenter.Endpoint = strings.TrimSpace(c.VCenter.Endpoint)
	c.VCenter.ResourcePool = strings.TrimSpace(c.VCenter.ResourcePool)
	c.Database.Server = strings.TrimSpace(c.Database.Server)

	if c.VCenter.ControllerType == "" {
		c.VCenter.ControllerType = "pvscsi"
	}
	if c.VCenter.DiskFormat == "" {
		c.VCenter.DiskFormat = "thin"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 1433
	}
}

// Validate checks the configuration for errors.
// It validates structure only, not reachability of the endpoints.
func (c *RunConfig) Validate() error {
	if c.VCenter.Endpoint == "" {
		return fmt.Errorf("vcenter.endpoint is required")
	}
	if c.VCenter.ResourcePool == "" {
		return fmt.Errorf("vcenter.resource_pool is required")
	}
	if !validControllerTypes[c.VCenter.ControllerType] {
		return fmt.Errorf("vcenter.controller_type %q is not a valid SCSI controller type", c.VCenter.ControllerType)
	}
	if c.VCenter.DiskFormat != "thin" && c.VCenter.DiskFormat != "thick" {
		return fmt.Errorf("vcenter.disk_format must be \"thin\" or \"thick\", got %q", c.VCenter.DiskFormat)
	}

	// The database section is only required when registration is requested,
	// but if a server is named the rest of the section must be complete.
	if c.Database.Server != "" && c.Database.Name == "" {
		return fmt.Errorf("database.name is required when database.server is set")
	}
	if c.Defaults.Register && c.Database.Server == "" {
		return fmt.Errorf("defaults.register is enabled but database.server is not set")
	}

	return nil
}

// LoadRunConfig loads the run configuration from a YAML file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run configuration: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	return &cfg, nil
}
