package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	watchSubscriber int64
	watchUsername   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage a subscriber's keyword watchlist",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <keyword>",
	Short: "Start watching a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSubscriber == 0 {
			return errors.New("--subscriber is required")
		}
		return getApp().AddWatch(cmd.Context(), watchSubscriber, watchUsername, args[0])
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <keyword>",
	Short: "Stop watching a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSubscriber == 0 {
			return errors.New("--subscriber is required")
		}
		return getApp().RemoveWatch(cmd.Context(), watchSubscriber, args[0])
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSubscriber == 0 {
			return errors.New("--subscriber is required")
		}
		return getApp().ListWatch(cmd.Context(), watchSubscriber)
	},
}

var watchClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every watched keyword and reset notification baselines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchSubscriber == 0 {
			return errors.New("--subscriber is required")
		}
		return getApp().ClearWatch(cmd.Context(), watchSubscriber)
	},
}

func init() {
	watchCmd.PersistentFlags().Int64Var(&watchSubscriber, "subscriber", 0, "Subscriber (chat) ID")
	watchCmd.PersistentFlags().StringVar(&watchUsername, "username", "", "Subscriber display name")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchClearCmd)
}
