package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/deploydb"
	"github.com/gngordon/vmdeploy/internal/output"
	"github.com/gngordon/vmdeploy/internal/provision"
	"github.com/gngordon/vmdeploy/internal/ui"
	"github.com/gngordon/vmdeploy/internal/vsphere"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmdeploy",
	Short: "vmdeploy - vSphere VM provisioning tool",
	Long: `vmdeploy creates or resets virtual machines on a vCenter endpoint from a
VM list, and optionally registers newly created VMs in the deployment
database so they pick up the right task sequence on first boot.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(testConnCmd)
}

var runFlags struct {
	all      bool
	names    []string
	user     string
	password string
	insecure bool

	dbUser     string
	dbPassword string

	register    bool
	pause       bool
	powerOn     bool
	openConsole bool
	dryRun      bool
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.all, "all", false, "process every VM in the list without prompting")
	f.StringSliceVar(&runFlags.names, "select", nil, "process only the named VMs without prompting")
	f.StringVar(&runFlags.user, "user", "", "vCenter username")
	f.StringVar(&runFlags.password, "password", "", "vCenter password")
	f.BoolVar(&runFlags.insecure, "insecure", false, "skip vCenter TLS certificate verification")
	f.StringVar(&runFlags.dbUser, "db-user", "", "deployment database username")
	f.StringVar(&runFlags.dbPassword, "db-password", "", "deployment database password")
	f.BoolVar(&runFlags.register, "register", false, "register newly created VMs in the deployment database")
	f.BoolVar(&runFlags.pause, "pause", false, "pause for manual application install after each VM")
	f.BoolVar(&runFlags.powerOn, "power-on", false, "power on each VM after processing")
	f.BoolVar(&runFlags.openConsole, "console", false, "open a remote console after power-on")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "report decisions without changing anything")
	runCmd.MarkFlagsMutuallyExclusive("all", "select")
}

var runCmd = &cobra.Command{
	Use:   "run <config.yaml> <vms.csv>",
	Short: "Create or reset the selected VMs",
	Long: `Process a selection of VMs from the VM list, one at a time in list order.

Each VM is created if it does not exist on the endpoint, or reset to a
clean pre-deployment state (power off, drop snapshots, replace the boot
disk) if it does. Newly created VMs can be registered in the deployment
database by MAC address.

Without --all or --select the VMs and run options are chosen
interactively. Any failure aborts the remainder of the run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRunConfig(args[0])
		if err != nil {
			return err
		}

		specs, err := config.LoadVMList(args[1])
		if err != nil {
			return err
		}

		selected, opts, err := resolveSelection(cmd, cfg, specs)
		if err != nil {
			return err
		}

		if opts.Register && !opts.DryRun && cfg.Database.Server == "" {
			return fmt.Errorf("registration requested but no database.server configured")
		}

		creds := vsphere.Credentials{Username: runFlags.user, Password: runFlags.password}
		if creds.Username == "" {
			creds.Username, creds.Password, err = ui.PromptCredentials("vCenter")
			if err != nil {
				return err
			}
		}

		ctx := context.Background()

		session, err := vsphere.Connect(ctx, cfg.VCenter.Endpoint, cfg.VCenter.Datacenter,
			creds, cfg.VCenter.Insecure || runFlags.insecure)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := session.Close(ctx); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close vCenter session: %v\n", closeErr)
			}
		}()

		if err := provision.Run(ctx, session, cfg, selected, opts, dbPrompter()); err != nil {
			return err
		}

		fmt.Printf("✓ Processed %d VM(s) successfully\n", len(selected))
		return nil
	},
}

// resolveSelection decides which VMs are processed and with which toggles:
// --all and --select skip the interactive prompts and take the toggles from
// the config defaults, overridden by any toggle flag set on the command
// line. Flags set explicitly also override an interactive selection.
func resolveSelection(cmd *cobra.Command, cfg *config.RunConfig, specs []config.VMSpec) ([]config.VMSpec, provision.Options, error) {
	opts := provision.Options{
		Register:     cfg.Defaults.Register,
		PauseForApps: cfg.Defaults.PauseForApps,
		PowerOn:      cfg.Defaults.PowerOn,
		OpenConsole:  cfg.Defaults.OpenConsole,
		DryRun:       cfg.Defaults.DryRun,
	}

	var selected []config.VMSpec

	switch {
	case runFlags.all:
		selected = specs
	case len(runFlags.names) > 0:
		filtered, err := config.FilterByNames(specs, runFlags.names)
		if err != nil {
			return nil, opts, err
		}
		selected = filtered
	default:
		sel, err := ui.Select(specs, cfg.Defaults)
		if err != nil {
			return nil, opts, err
		}
		filtered, err := config.FilterByNames(specs, sel.Names)
		if err != nil {
			return nil, opts, err
		}
		selected = filtered
		opts = sel.Options
	}

	flags := cmd.Flags()
	if flags.Changed("register") {
		opts.Register = runFlags.register
	}
	if flags.Changed("pause") {
		opts.PauseForApps = runFlags.pause
	}
	if flags.Changed("power-on") {
		opts.PowerOn = runFlags.powerOn
	}
	if flags.Changed("console") {
		opts.OpenConsole = runFlags.openConsole
	}
	if flags.Changed("dry-run") {
		opts.DryRun = runFlags.dryRun
	}

	return selected, opts, nil
}

// dbPrompter returns the credential source for the deployment database:
// the --db-user/--db-password flags once, then the interactive prompt for
// any further attempt.
func dbPrompter() deploydb.CredentialPrompter {
	used := false
	return func() (string, string, error) {
		if !used && runFlags.dbUser != "" {
			used = true
			return runFlags.dbUser, runFlags.dbPassword, nil
		}
		used = true
		return ui.PromptCredentials("Database")
	}
}

var listFlags struct {
	format    string
	noHeaders bool
}

func init() {
	listCmd.Flags().StringVarP(&listFlags.format, "output", "o", "table", "output format (table, yaml, json)")
	listCmd.Flags().BoolVar(&listFlags.noHeaders, "no-headers", false, "omit the header row in table output")
}

var listCmd = &cobra.Command{
	Use:   "list <vms.csv>",
	Short: "Show the provisioning plan for a VM list",
	Long: `Load and validate a VM list and print what each VM would be provisioned
with, including the derived CPU socket topology. Nothing is contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(listFlags.format); err != nil {
			return err
		}

		specs, err := config.LoadVMList(args[0])
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(listFlags.format),
			NoHeaders: listFlags.noHeaders,
		})
		if err != nil {
			return err
		}

		text, err := formatter.FormatPlan(output.Plan(specs))
		if err != nil {
			return err
		}

		fmt.Print(text)
		return nil
	},
}

var testConnFlags struct {
	user     string
	password string
	insecure bool
}

func init() {
	testConnCmd.Flags().StringVar(&testConnFlags.user, "user", "", "vCenter username")
	testConnCmd.Flags().StringVar(&testConnFlags.password, "password", "", "vCenter password")
	testConnCmd.Flags().BoolVar(&testConnFlags.insecure, "insecure", false, "skip vCenter TLS certificate verification")
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn <config.yaml>",
	Short: "Test the vCenter connection",
	Long:  `Test connectivity to the configured vCenter endpoint and display version information.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRunConfig(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Testing connection to %s...\n", cfg.VCenter.Endpoint)

		ctx := context.Background()
		session, err := vsphere.Connect(ctx, cfg.VCenter.Endpoint, cfg.VCenter.Datacenter,
			vsphere.Credentials{Username: testConnFlags.user, Password: testConnFlags.password},
			cfg.VCenter.Insecure || testConnFlags.insecure)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := session.Close(ctx); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close vCenter session: %v\n", closeErr)
			}
		}()

		about := session.About()
		fmt.Println("✓ Connected to vCenter")
		fmt.Printf("✓ Product: %s\n", about.FullName)
		fmt.Printf("✓ Version: %s (build %s)\n", about.Version, about.Build)
		fmt.Printf("✓ API: %s %s\n", about.ApiType, about.ApiVersion)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
