package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

const configDirName = ".checkout"

var (
	cfgFile string
	format  string
	verbose bool

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
)

// newAPI builds the gateway client from configuration. Tests replace it.
var newAPI = func() gateway.API {
	return gateway.NewClient(&gateway.Config{
		BaseURL:     viper.GetString("gateway_url"),
		CallbackURL: viper.GetString("callback_url"),
		SecretKey:   viper.GetString("secret_key"),
		Integration: viper.GetString("integration"),
	})
}

var rootCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Multi-currency checkout - collect payments across Africa",
	Long: titleStyle.Render(`
╔═══════════════════════════════════════════════════════════╗
║  Multi-Currency Checkout - Card, Bank, USSD, Mobile Money ║
╚═══════════════════════════════════════════════════════════╝
`) + `
Take payments in Nigeria, Ghana, Kenya and South Africa from your terminal.

Get started:
  checkout config set secret_key     Store your gateway secret key
  checkout countries                 See what each country supports
  checkout pay                       Take a payment
  checkout test successful_card      Run a sandbox scenario
  checkout --help                    Show all commands`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.InitWithWriter("checkout-cli", level, os.Stderr)
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		output.Error(err.Error())
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.checkout/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "output format: table, json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log gateway calls to stderr")

	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			output.Error("Error: " + err.Error())
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetDefault("gateway_url", "https://api.paystack.co")
	viper.SetDefault("callback_url", "http://localhost:8080/payment/callback")
	viper.SetDefault("secret_key", "")
	viper.SetDefault("integration", gateway.DefaultIntegration)
	viper.SetDefault("format", "table")
	viper.SetDefault("default_country", "NG")

	viper.SetEnvPrefix("CHECKOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName), nil
}

func getFormat() string {
	if format != "" {
		return format
	}
	return viper.GetString("format")
}

func newValidator() *validation.Validator {
	return validation.New(registry.MustBuiltin())
}

// stdin is where prompts read from. Tests replace it.
var stdin io.Reader = os.Stdin

func requireSecretKey() error {
	if viper.GetString("secret_key") == "" {
		return fmt.Errorf("no gateway secret key configured; run 'checkout config set secret_key'")
	}
	return nil
}
