package main

import (
	"github.com/spf13/cobra"
)

const (
	groupDaemon    = "daemon"
	groupRecording = "recording"
	groupSetup     = "setup"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:           "webvideo",
		Short:         "Record a live stream page on a schedule",
		Long:          "webvideo opens a live stream page at a scheduled time, captures the screen with ffmpeg and stops after the configured duration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the webvideo daemon socket")
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddGroup(
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupRecording, Title: "Recording:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)

	addToGroup(root, groupDaemon, newDaemonCommands(ctx)...)
	addToGroup(root, groupDaemon, newLogsCommand(ctx))
	addToGroup(root, groupRecording, newRecordCommand(ctx), newHistoryCommand(ctx))
	addToGroup(root, groupSetup, newConfigCommand(ctx), newTestNotifyCommand(ctx))
	root.AddCommand(newDaemonRunCommand(ctx))

	return root
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
