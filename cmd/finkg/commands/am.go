package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage finkg configuration",
	Long: `am - Manage finkg configuration ("I am")

Display and check finkg configuration settings.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (FINKG_* prefix; OPENROUTER_API_KEY, OPENAI_API_KEY
   and ANTHROPIC_API_KEY are honoured too)
3. .env in the working directory (never overrides the process environment)
4. Project config (./finkg.toml, ./finkg.yaml; searched up the directory tree)
5. User config (~/.finkg/finkg.toml)
6. System config (/etc/finkg/finkg.toml)
7. Default values

Examples:
  finkg am show                    # Show current configuration
  finkg am show --format json      # Show configuration in JSON format
  finkg am get reasoning.provider  # Get specific config value
  finkg am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current finkg configuration from all sources. API keys are masked.",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., reasoning.max_attempts, trace.path)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which config files are consulted",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", formatTOML, "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return render(cmd.OutOrStdout(), configFormat, "finkg configuration", cfg.Redacted())
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !am.IsSet(key) {
		return errors.Wrapf(errors.ErrNotFound, "configuration key %q", key)
	}
	if isSecretKey(key) {
		fmt.Fprintln(cmd.OutOrStdout(), "****")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func isSecretKey(key string) bool {
	switch key {
	case "openrouter.api_key", "openai.api_key", "anthropic.api_key":
		return am.Get(key) != ""
	}
	return false
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	for i, path := range am.ConfigPaths() {
		status := pterm.Gray("missing")
		if _, err := os.Stat(path); err == nil {
			status = pterm.Green("loaded")
		}
		fmt.Fprintf(out, "  %d. %s  %s\n", i+1, path, status)
	}
	fmt.Fprintln(out, "  then FINKG_* environment variables")
	return nil
}
