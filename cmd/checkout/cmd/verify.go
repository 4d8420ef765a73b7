package cmd

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/store"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [callback-url | reference]",
	Short: "Verify a payment",
	Long: `Verify a payment after the customer returns from the gateway.

Pass the full callback URL (its reference or trxref parameter is used) or a
bare reference. With no argument the last payment's reference is verified.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := requireSecretKey(); err != nil {
		return err
	}

	stored, err := store.Load()
	if err != nil {
		return err
	}

	var query url.Values
	switch {
	case len(args) == 0:
		if stored.LastReference == "" {
			return errors.New("no reference given and no previous payment found")
		}
		query = url.Values{"reference": {stored.LastReference}}
	case strings.Contains(args[0], "?"):
		u, err := url.Parse(args[0])
		if err != nil {
			return err
		}
		query = u.Query()
	default:
		query = url.Values{"reference": {args[0]}}
	}

	out := checkout.NewCallbackHandler(newAPI()).Handle(cmd.Context(), query)

	if out.Reference != "" && out.Reference == stored.LastReference && stored.Session.Resolve(out) {
		if err := store.Save(stored); err != nil {
			output.Warning("Could not save session: " + err.Error())
		}
	}

	printOutcome(out, stored.Session.Order)
	if out.Err != nil {
		return errors.New(out.Message)
	}
	return nil
}
