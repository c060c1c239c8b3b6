package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GZancewicz/web-conference/internal/config"
)

var (
	flagServer   string
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join a conference room",
	Long: `Join a conference room by id, creating it if it does not exist yet.

Examples:
  conference join standup --name Alice
  conference join abc-123 --name Bob --server ws://conf.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagName == "" {
			return fmt.Errorf("a display name is required (--name)")
		}

		cfg := config.LoadClient(config.Options{
			ServerURL:  flagServer,
			STUNServer: flagSTUN,
			TURNServer: flagTURN,
			TURNUser:   flagTURNUser,
			TURNPass:   flagTURNPass,
		})

		session := NewSession(cfg, args[0], flagName)
		return session.Run()
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagServer, "server", "s", "", "Signaling server websocket URL")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name shown to other participants")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
}
