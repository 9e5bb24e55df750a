package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	intrnl "watchroom/internal"
	"watchroom/internal/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "watchroom",
	Short: "Watch videos together from your terminal",
	Long: `watchroom is a terminal client for shared watch rooms: synchronized
video playback, live chat and a participant roster, all over one
websocket session per room.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			cfg.APIBaseURL, _ = cmd.Flags().GetString("server")
		}
		if cmd.Flags().Changed("socket") {
			cfg.SocketURL, _ = cmd.Flags().GetString("socket")
		}
		if cmd.Flags().Changed("user") {
			cfg.Username, _ = cmd.Flags().GetString("user")
		}
		return app.RunClient(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version and check for updates",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("watchroom %s (%s)\n", intrnl.Version, intrnl.GetPlatform())
		latest, err := intrnl.GetLatestVersion()
		if err != nil {
			fmt.Println("Could not check for updates:", err)
			return
		}
		if intrnl.CompareVersions(latest, intrnl.Version) > 0 {
			fmt.Printf("A newer version is available: %s\n", latest)
		} else {
			fmt.Println("You are up to date.")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.watchroom.yaml)")
	rootCmd.Flags().String("server", "", "REST backend base URL")
	rootCmd.Flags().String("socket", "", "websocket broker URL")
	rootCmd.Flags().String("user", "", "username to log in with")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
