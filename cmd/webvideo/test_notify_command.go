package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"webvideo/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test event to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				out := cmd.OutOrStdout()
				if resp != nil && resp.Message != "" {
					fmt.Fprintln(out, resp.Message)
				}
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if resp != nil && resp.Message == "" && !resp.Sent {
					fmt.Fprintln(out, "Notification not sent (check notifications.ntfy_topic)")
				}
				return nil
			})
		},
	}
}
