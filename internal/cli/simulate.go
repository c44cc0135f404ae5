package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateSubscriber int64
	simulateKeyword    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic restock notification through the real pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSubscriber == 0 {
			return errors.New("--subscriber is required")
		}
		if simulateKeyword == "" {
			return errors.New("--keyword is required")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateSubscriber, simulateKeyword)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateSubscriber, "subscriber", 0, "Subscriber (chat) ID to notify")
	simulateCmd.Flags().StringVar(&simulateKeyword, "keyword", "", "Keyword to simulate a restock for")
}
