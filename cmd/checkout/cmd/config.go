package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "View and modify CLI configuration.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display all current configuration values. The secret key is masked.",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  gateway_url      - Payment gateway API URL (default: https://api.paystack.co)
  callback_url     - Where the gateway returns customers after payment
  secret_key       - Gateway secret key; prompted for without echo when VALUE is omitted
  format           - Default output format: table, json (default: table)
  default_country  - Country used when --country is not given (default: NG)`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Long:  "Display the path to the configuration file.",
	RunE:  runConfigPath,
}

var configKeys = []string{"gateway_url", "callback_url", "secret_key", "format", "default_country"}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := make(map[string]string, len(configKeys))
	for _, k := range configKeys {
		settings[k] = viper.GetString(k)
	}
	settings["secret_key"] = maskSecret(settings["secret_key"])

	if getFormat() == "json" {
		return output.JSON(settings)
	}

	output.Header("Configuration")
	fmt.Fprintln(output.Stdout)
	pairs := make([][]string, 0, len(configKeys))
	for _, k := range configKeys {
		v := settings[k]
		if v == "" {
			v = "(not set)"
		}
		pairs = append(pairs, []string{k, v})
	}
	output.KeyValue(pairs)

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintln(output.Stdout)
		output.Info("Config file: " + viper.ConfigFileUsed())
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !slices.Contains(configKeys, key) {
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(configKeys, ", "))
	}

	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case key == "secret_key":
		secret, err := promptSecret("Secret key")
		if err != nil {
			return err
		}
		value = secret
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	switch key {
	case "format":
		if value != "table" && value != "json" {
			return fmt.Errorf("format must be 'table' or 'json'")
		}
	case "default_country":
		value = strings.ToUpper(value)
		if _, ok := registry.MustBuiltin().LookupCountry(value); !ok {
			return fmt.Errorf("unknown country %q", value)
		}
	}

	viper.Set(key, value)

	configFile, err := configFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("could not save config: %w", err)
	}

	if key == "secret_key" {
		value = maskSecret(value)
	}
	output.Success(fmt.Sprintf("Set %s = %s", key, value))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	if getFormat() == "json" {
		return output.JSON(map[string]string{
			"config_file": configFile,
			"config_dir":  filepath.Dir(configFile),
		})
	}

	fmt.Fprintln(output.Stdout, configFile)
	return nil
}

func configFilePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// promptSecret reads without echo from a terminal, or a plain line otherwise.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(output.Stdout, "%s: ", label)
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(output.Stdout)
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:7] + strings.Repeat("*", len(s)-11) + s[len(s)-4:]
}
