package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List transactions",
	Long: `List the merchant's transactions, newest first.

Examples:
  checkout history
  checkout history --status failed
  checkout history show T1700000000000ABC123`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show REFERENCE",
	Short: "Show one transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatus string

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().StringVarP(&historyStatus, "status", "s", "all", "filter: all, pending, success, failed")
}

func loadHistory(cmd *cobra.Command) (*checkout.History, error) {
	if err := requireSecretKey(); err != nil {
		return nil, err
	}
	hist, err := checkout.LoadHistory(cmd.Context(), newAPI(), nil)
	if err != nil {
		if gerr, ok := gateway.AsGatewayError(err); ok {
			return nil, fmt.Errorf("could not load transactions: %s", gerr.Message)
		}
		return nil, err
	}
	return hist, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	hist, err := loadHistory(cmd)
	if err != nil {
		return err
	}
	txs := hist.Filter(historyStatus)
	counts := hist.Counts()

	if getFormat() == "json" {
		return output.JSON(map[string]any{
			"status":       historyStatus,
			"count":        len(txs),
			"counts":       counts,
			"transactions": txs,
		})
	}

	output.Header("Transactions")
	output.Info(fmt.Sprintf("%d shown · %d success · %d pending · %d failed",
		len(txs), counts[gateway.StatusSuccess], counts[gateway.StatusPending], counts[gateway.StatusFailed]))
	fmt.Fprintln(output.Stdout)

	if len(txs) == 0 {
		output.Info("No transactions found")
		return nil
	}

	v := newValidator()
	rows := make([][]string, len(txs))
	for i, tx := range txs {
		rows[i] = []string{
			tx.Reference,
			v.FormatSubunit(tx.Amount, tx.Currency),
			output.FormatStatus(string(tx.Status)),
			tx.PaymentMethod,
			tx.Email,
			tx.CreatedAt.Local().Format("2006-01-02 15:04"),
		}
	}
	output.Table([]string{"Reference", "Amount", "Status", "Method", "Email", "Date"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	hist, err := loadHistory(cmd)
	if err != nil {
		return err
	}
	tx, ok := hist.Find(args[0])
	if !ok {
		return fmt.Errorf("transaction %s not found", args[0])
	}

	if getFormat() == "json" {
		return output.JSON(tx)
	}

	v := newValidator()
	paid := ""
	if tx.PaidAt != nil {
		paid = tx.PaidAt.Local().Format("2006-01-02 15:04:05")
	}
	output.Header("Transaction " + tx.Reference)
	fmt.Fprintln(output.Stdout)
	output.KeyValue([][]string{
		{"ID", string(tx.ID)},
		{"Amount", output.Money(v.FormatSubunit(tx.Amount, tx.Currency))},
		{"Subunits", strconv.FormatInt(tx.Amount, 10)},
		{"Status", output.FormatStatus(string(tx.Status))},
		{"Method", tx.PaymentMethod},
		{"Channel", tx.Channel},
		{"Email", tx.Email},
		{"Created", tx.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Paid", paid},
	})
	return nil
}
