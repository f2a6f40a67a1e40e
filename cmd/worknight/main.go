package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagNoHeadless  bool
	flagProfilePath string
	flagTimeout     time.Duration
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "worknight",
	Short: "worknight extracts your personal HR data from the company Workday portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
			level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagNoHeadless, "no-headless", false,
		"Display the browser window during execution.")
	rootCmd.PersistentFlags().StringVar(&flagProfilePath, "browser-profile-path", "",
		"Path to a directory with a browser profile. If not set, a profile is created automatically.")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 5*time.Minute,
		"Overall timeout for the browser pipeline.")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Log level: debug, info, warn or error.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
