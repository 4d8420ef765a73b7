package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/store"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

var testCmd = &cobra.Command{
	Use:   "test [SCENARIO]",
	Short: "Run a sandbox payment scenario",
	Long: `Run a canned sandbox payment against the gateway's test mode.

With no scenario the available scenarios are listed for the country.

Examples:
  checkout test
  checkout test successful_card
  checkout test mobile_money_success --country KE`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTest,
}

var testFlags struct {
	country string
	amount  string
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&testFlags.country, "country", "", "country code (default from config)")
	testCmd.Flags().StringVarP(&testFlags.amount, "amount", "a", "", "amount in major units (default 10x the currency minimum)")
}

func runTest(cmd *cobra.Command, args []string) error {
	country := strings.ToUpper(testFlags.country)
	if country == "" {
		country = strings.ToUpper(viper.GetString("default_country"))
	}

	if len(args) == 0 {
		return listScenarios(country)
	}

	sc, ok := checkout.LookupScenario(args[0])
	if !ok {
		return fmt.Errorf("unknown scenario %q; run 'checkout test' to list them", args[0])
	}
	if err := requireSecretKey(); err != nil {
		return err
	}

	v := newValidator()
	c, ok := v.Registry().LookupCountry(country)
	if !ok {
		return fmt.Errorf("unknown country %q", country)
	}

	amount := testFlags.amount
	if amount == "" {
		amount = defaultTestAmount(v.Registry(), c.Currency)
	}

	form, err := sc.Form(v, country, c.Currency, amount)
	if err != nil {
		return err
	}

	if getFormat() != "json" {
		output.Header(sc.Name)
		output.Info(sc.Description)
		fmt.Fprintln(output.Stdout)
	}

	stored := &store.Stored{Session: checkout.NewSession()}
	return submit(cmd.Context(), checkout.NewOrchestrator(newAPI(), v), stored, form)
}

func listScenarios(country string) error {
	scenarios := checkout.Scenarios()
	if getFormat() == "json" {
		return output.JSON(scenarios)
	}

	rows := make([][]string, len(scenarios))
	for i, sc := range scenarios {
		available := output.SuccessStyle.Render("yes")
		if !sc.AvailableIn(country) {
			available = output.MutedStyle.Render("no")
		}
		rows[i] = []string{sc.ID, sc.Name, registry.DescribeMethod(sc.Method).Name, available}
	}
	output.Table([]string{"Scenario", "Name", "Method", "In " + country}, rows)
	return nil
}

func defaultTestAmount(reg *registry.Registry, currency string) string {
	cur, ok := reg.LookupCurrency(currency)
	if !ok {
		return "100"
	}
	return cur.MinAmount.Mul(decimal.NewFromInt(10)).StringFixed(cur.Decimals)
}
