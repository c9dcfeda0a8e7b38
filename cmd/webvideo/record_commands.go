package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"webvideo/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Schedule and control the recording session",
	}

	recordCmd.AddCommand(newRecordScheduleCommand(ctx))
	recordCmd.AddCommand(newSessionActionCommand(ctx, "now", "Start recording immediately", (*ipc.Client).BeginNow))
	recordCmd.AddCommand(newSessionActionCommand(ctx, "stop", "Cancel the countdown or stop the recording", (*ipc.Client).StopRecording))
	recordCmd.AddCommand(newSessionActionCommand(ctx, "press", "Press the start control (twice quickly to start now)", (*ipc.Client).Press))
	recordCmd.AddCommand(newRecordExtendCommand(ctx))
	recordCmd.AddCommand(newRecordShowCommand(ctx))
	recordCmd.AddCommand(newRecordNextCommand(ctx))
	return recordCmd
}

func newRecordScheduleCommand(ctx *commandContext) *cobra.Command {
	var overrides ipc.TaskOverrides
	var silent bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Arm the stored task, optionally changing it first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("silent") {
				overrides.Silent = &silent
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Schedule(overrides)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recording scheduled for %s\n", formatDisplayTime(resp.Session.NextStart))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&overrides.URL, "url", "", "Stream page URL")
	cmd.Flags().StringVar(&overrides.StartTime, "start", "", "Start time as \"YYYY-MM-DD HH:MM:SS\" in local time")
	cmd.Flags().IntVar(&overrides.DurationMinutes, "duration", 0, "Recording length in minutes")
	cmd.Flags().StringVar(&overrides.Recurrence, "repeat", "", "Recurrence: none, everyday, or a day list such as mon,wed")
	cmd.Flags().BoolVar(&silent, "silent", false, "Record without browser automation")
	return cmd
}

func newSessionActionCommand(ctx *commandContext, use, short string, action func(*ipc.Client) (*ipc.SessionResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := action(client)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", formatStatusLabel(resp.Session.State))
				return nil
			})
		},
	}
}

func newRecordExtendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extend",
		Short: "Extend the active recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Extend()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording now ends at %s\n", resp.EndsAt)
				return nil
			})
		},
	}
}

func newRecordShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Session()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), resp.Session)
				}
				newPrinter(cmd.OutOrStdout()).table([]string{"Field", "Value"}, sessionRows(resp.Session), nil)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newRecordNextCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "List upcoming start times of the stored task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Preview(count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Starts) == 0 {
					fmt.Fprintln(out, "No upcoming starts")
					return nil
				}
				fmt.Fprintln(out, strings.Join(resp.Starts, "\n"))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of start times to list")
	return cmd
}
