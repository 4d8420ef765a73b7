package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/store"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Take a payment",
	Long: `Collect a payment by card, bank transfer, USSD or mobile money.

Missing details are prompted for when running in a terminal. Pass --order with
a merchant checkout link to prefill the amount, email and currency.

Examples:
  checkout pay --country NG --amount 5000 --email ada@example.com
  checkout pay --country KE --method mobile_money --provider mpesa --phone 0712345678
  checkout pay --order "https://shop.example/checkout?order_id=123&amount=5000&email=ada@example.com"`,
	RunE: runPay,
}

var payFlags struct {
	country  string
	currency string
	amount   string
	method   string
	email    string
	name     string
	phone    string
	provider string
	bank     string
	order    string
}

// errValidation is returned after field errors have been printed.
var errValidation = errors.New("payment details are invalid")

func init() {
	rootCmd.AddCommand(payCmd)

	f := payCmd.Flags()
	f.StringVar(&payFlags.country, "country", "", "country code (default from config)")
	f.StringVar(&payFlags.currency, "currency", "", "currency code (default is the country's currency)")
	f.StringVarP(&payFlags.amount, "amount", "a", "", "amount in major units, e.g. 5000.00")
	f.StringVarP(&payFlags.method, "method", "m", "", "card, bank_transfer, ussd or mobile_money")
	f.StringVarP(&payFlags.email, "email", "e", "", "customer email")
	f.StringVarP(&payFlags.name, "name", "n", "", "customer name")
	f.StringVarP(&payFlags.phone, "phone", "p", "", "customer phone number")
	f.StringVar(&payFlags.provider, "provider", "", "mobile money provider code")
	f.StringVar(&payFlags.bank, "bank", "", "bank code for bank transfer or USSD")
	f.StringVar(&payFlags.order, "order", "", "merchant checkout link carrying order_id, amount and email")
}

func runPay(cmd *cobra.Command, args []string) error {
	if err := requireSecretKey(); err != nil {
		return err
	}

	stored, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	sess := stored.Session

	v := newValidator()
	orch := checkout.NewOrchestrator(newAPI(), v)
	if sess.Status.Terminal() {
		if err := orch.Reset(sess); err != nil {
			return err
		}
	}

	if payFlags.order != "" {
		u, err := url.Parse(payFlags.order)
		if err != nil {
			return fmt.Errorf("invalid order link: %w", err)
		}
		order := checkout.ParseOrder(u.Query())
		if !order.HasContext() {
			return errors.New("order link must carry order_id, amount and email")
		}
		sess.Form = nil
		sess.AttachOrder(order)
	}

	form := buildForm(v, sess)
	if isInteractive() {
		promptMissing(v, &form)
	}

	if fields := form.Validate(v); len(fields) > 0 {
		output.Error("Please fix the following:")
		output.FieldErrors(fields)
		return errValidation
	}

	if getFormat() != "json" {
		output.Info(fmt.Sprintf("Charging %s via %s...", amountLabel(v, form), registry.DescribeMethod(form.Method).Name))
	}
	return submit(cmd.Context(), orch, stored, form)
}

// submit runs form through the orchestrator, prints the outcome and saves
// the session.
func submit(ctx context.Context, orch *checkout.Orchestrator, stored *store.Stored, form checkout.Form) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := orch.Submit(ctx, stored.Session, form)
	if verr, ok := checkout.AsValidationError(err); ok {
		output.Error("Please fix the following:")
		output.FieldErrors(verr.Fields)
		return errValidation
	}
	if err != nil {
		return err
	}

	stored.Session.Form = &form
	if out.Reference != "" {
		stored.LastReference = out.Reference
	}
	if err := store.Save(stored); err != nil {
		output.Warning("Could not save session: " + err.Error())
	}

	printOutcome(out, stored.Session.Order)
	if out.Err != nil {
		return errors.New(out.Message)
	}
	return nil
}

// buildForm layers flags over the session's saved form and order.
func buildForm(v *validation.Validator, sess *checkout.Session) checkout.Form {
	var form checkout.Form
	if sess.Form != nil {
		form = *sess.Form
	}

	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	set(&form.Country, payFlags.country)
	set(&form.Currency, payFlags.currency)
	set(&form.Amount, payFlags.amount)
	set(&form.Customer.Email, payFlags.email)
	set(&form.Customer.Name, payFlags.name)
	set(&form.Customer.Phone, payFlags.phone)
	set(&form.MobileMoneyProvider, payFlags.provider)
	set(&form.BankCode, payFlags.bank)
	if payFlags.method != "" {
		form.Method = registry.PaymentMethod(strings.ToLower(payFlags.method))
	}

	if form.Country == "" {
		form.Country = viper.GetString("default_country")
	}
	form.Country = strings.ToUpper(form.Country)
	if form.Currency == "" {
		if c, ok := v.Registry().LookupCountry(form.Country); ok {
			form.Currency = c.Currency
		}
	}
	if form.Customer.Email == "" {
		form.Customer.Email = sess.LastEmail
	}
	if form.Method == "" {
		form.Method = registry.MethodCard
	}
	return form
}

func isInteractive() bool {
	f, ok := stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func promptMissing(v *validation.Validator, form *checkout.Form) {
	r := bufio.NewReader(stdin)

	ask := func(dst *string, label string) {
		if *dst == "" {
			*dst = prompt(r, label)
		}
	}
	ask(&form.Amount, fmt.Sprintf("Amount (%s)", form.Currency))
	ask(&form.Customer.Email, "Email")
	ask(&form.Customer.Name, "Full name")
	ask(&form.Customer.Phone, "Phone number")

	country, ok := v.Registry().LookupCountry(form.Country)
	if !ok {
		return
	}

	switch form.Method {
	case registry.MethodMobileMoney:
		if form.MobileMoneyProvider == "" && len(country.MobileMoneyProviders) > 0 {
			opts := make([]string, len(country.MobileMoneyProviders))
			for i, p := range country.MobileMoneyProviders {
				opts[i] = p.Code + " (" + p.Name + ")"
			}
			output.Info("Providers: " + strings.Join(opts, ", "))
			form.MobileMoneyProvider = prompt(r, "Mobile money provider")
		}
	case registry.MethodBankTransfer:
		if form.BankCode == "" && len(country.Banks) > 0 {
			opts := make([]string, len(country.Banks))
			for i, b := range country.Banks {
				opts[i] = b.Code + " (" + b.Name + ")"
			}
			output.Info("Banks: " + strings.Join(opts, ", "))
			form.BankCode = prompt(r, "Bank code")
		}
	case registry.MethodUSSD:
		if form.BankCode == "" && len(country.USSDCodes) > 0 {
			opts := make([]string, len(country.USSDCodes))
			for i, u := range country.USSDCodes {
				opts[i] = u.BankCode + " (" + u.Template + ")"
			}
			output.Info("USSD banks: " + strings.Join(opts, ", "))
			form.BankCode = prompt(r, "Bank")
		}
	}
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Fprintf(output.Stdout, "%s: ", label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func amountLabel(v *validation.Validator, form checkout.Form) string {
	amount, err := v.ValidateAmount(form.Amount, form.Currency)
	if err != nil {
		return form.Amount + " " + form.Currency
	}
	return output.Money(v.FormatCurrency(amount, form.Currency))
}

func printOutcome(out *checkout.Outcome, order *checkout.Order) {
	if getFormat() == "json" {
		payload := map[string]any{"outcome": out}
		if order != nil {
			if u := order.ReturnURL(out); u != "" && !out.Redirect() {
				payload["return_url"] = u
			}
		}
		output.JSON(payload)
		return
	}

	fmt.Fprintln(output.Stdout)
	switch {
	case out.Redirect():
		output.Warning(out.Message)
		output.KeyValue([][]string{
			{"Reference", out.Reference},
			{"Pay here", output.Link(out.AuthorizationURL)},
		})
		fmt.Fprintln(output.Stdout)
		output.Info("Run 'checkout verify " + out.Reference + "' once the payment is complete")
		return
	case out.Status == checkout.StatusSuccess:
		output.Success(out.Message)
	default:
		output.Error(out.Message)
	}

	rows := [][]string{
		{"Reference", out.Reference},
		{"Status", output.FormatStatus(string(out.Status))},
	}
	if tx := out.Transaction; tx != nil {
		rows = append(rows,
			[]string{"Gateway status", output.FormatStatus(string(tx.Status))},
			[]string{"Channel", tx.Channel},
		)
	}
	if order != nil {
		if u := order.ReturnURL(out); u != "" {
			rows = append(rows, []string{"Return to", output.Link(u)})
		}
	}
	output.KeyValue(rows)
}
