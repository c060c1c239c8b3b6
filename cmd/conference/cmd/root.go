package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GZancewicz/web-conference/internal/ui"
	"github.com/GZancewicz/web-conference/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "conference",
	Short:   "Terminal client for multi-party WebRTC conference rooms",
	Long:    `Conference joins a named room on a signaling server, negotiates direct WebRTC media links with every other participant, and shows a live roster and chat.`,
	Version: version.Version,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
