package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/output"
	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved checkout form and last reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Clear(); err != nil {
			return err
		}
		output.Success("Checkout session cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
