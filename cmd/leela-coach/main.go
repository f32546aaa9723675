package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath    string
	thinkName     string
	selfplayMoves int
)

var rootCmd = &cobra.Command{
	Use:   "leela-coach",
	Short: "Chess coaching client for a remote lc0 WebSocket bridge",
	Long: `leela-coach connects to an lc0 engine bridge over WebSocket and grades a
game move by move: every recorded move is analysed, compared against the
engine's preferred line, and journaled with a verdict. While the session
runs, a read-only status API publishes the live evaluation, the critique
history, and a rendered board image.

Moves are read from stdin as UCI strings; 'go' asks the engine to pick a
move, 'new' archives the game and starts over, 'quit' exits.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runFeed)
	},
}

var selfplayCmd = &cobra.Command{
	Use:   "selfplay",
	Short: "Let the engine play both sides and critique its own moves",
	RunE: func(cmd *cobra.Command, args []string) error {
		if selfplayMoves <= 0 {
			return fmt.Errorf("--moves must be positive")
		}
		return withApp(func(ctx context.Context, a *app) error {
			return runSelfplay(ctx, a, selfplayMoves)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("leela-coach " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "preferences YAML file (think times hot-reload on edit)")
	rootCmd.PersistentFlags().StringVar(&thinkName, "think", "", "think-time preset: blitz, standard, or deep")
	selfplayCmd.Flags().IntVar(&selfplayMoves, "moves", 20, "half-moves to play before archiving the game")

	rootCmd.AddCommand(selfplayCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
