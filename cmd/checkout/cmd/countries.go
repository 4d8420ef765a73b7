package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

var countriesCmd = &cobra.Command{
	Use:   "countries [CODE]",
	Short: "List supported countries",
	Long:  "List supported countries, or show one country's banks, USSD codes and mobile money providers.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCountries,
}

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List supported currencies and their limits",
	RunE:  runCurrencies,
}

func init() {
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(currenciesCmd)
}

func runCountries(cmd *cobra.Command, args []string) error {
	reg := registry.MustBuiltin()
	if len(args) == 1 {
		c, ok := reg.LookupCountry(args[0])
		if !ok {
			return fmt.Errorf("unknown country %q", args[0])
		}
		return showCountry(c)
	}

	countries := reg.Countries()
	if getFormat() == "json" {
		return output.JSON(countries)
	}

	rows := make([][]string, len(countries))
	for i, c := range countries {
		rows[i] = []string{c.Code, c.Name, c.Currency, c.PhoneCode, methodNames(c.Methods)}
	}
	output.Table([]string{"Code", "Country", "Currency", "Phone", "Methods"}, rows)
	return nil
}

func showCountry(c registry.Country) error {
	if getFormat() == "json" {
		return output.JSON(c)
	}

	output.Header(fmt.Sprintf("%s (%s)", c.Name, c.Code))
	fmt.Fprintln(output.Stdout)
	output.KeyValue([][]string{
		{"Currency", c.Currency},
		{"Phone code", c.PhoneCode},
		{"Methods", methodNames(c.Methods)},
	})

	if len(c.MobileMoneyProviders) > 0 {
		fmt.Fprintln(output.Stdout)
		output.Header("Mobile money")
		rows := make([][]string, len(c.MobileMoneyProviders))
		for i, p := range c.MobileMoneyProviders {
			rows[i] = []string{p.Code, p.Name, strings.Join(p.Prefixes, " "), p.Instructions}
		}
		output.Table([]string{"Code", "Provider", "Prefixes", "Instructions"}, rows)
	}
	if len(c.Banks) > 0 {
		fmt.Fprintln(output.Stdout)
		output.Header("Banks")
		rows := make([][]string, len(c.Banks))
		for i, b := range c.Banks {
			rows[i] = []string{b.Code, b.Name}
		}
		output.Table([]string{"Code", "Bank"}, rows)
	}
	if len(c.USSDCodes) > 0 {
		fmt.Fprintln(output.Stdout)
		output.Header("USSD")
		rows := make([][]string, len(c.USSDCodes))
		for i, u := range c.USSDCodes {
			rows[i] = []string{u.BankCode, u.BankName, u.Template}
		}
		output.Table([]string{"Code", "Bank", "Dial"}, rows)
		output.Info(registry.USSDInstructions)
	}
	return nil
}

func runCurrencies(cmd *cobra.Command, args []string) error {
	reg := registry.MustBuiltin()
	currencies := reg.Currencies()
	if getFormat() == "json" {
		return output.JSON(currencies)
	}

	v := newValidator()
	rows := make([][]string, len(currencies))
	for i, c := range currencies {
		rows[i] = []string{
			c.Code,
			c.Name,
			c.Symbol,
			v.FormatCurrency(c.MinAmount, c.Code),
			v.FormatCurrency(c.MaxAmount, c.Code),
		}
	}
	output.Table([]string{"Code", "Currency", "Symbol", "Min", "Max"}, rows)
	return nil
}

func methodNames(methods []registry.PaymentMethod) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = registry.DescribeMethod(m).Name
	}
	return strings.Join(names, ", ")
}
