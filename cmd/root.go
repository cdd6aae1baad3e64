package cmd

import (
	"os"
	"os/signal"

	"github.com/mehtakaran9/gridcall/internal/ui"
	"github.com/mehtakaran9/gridcall/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gridcall",
	Short:   "Proximity video chat on a shared tile grid, coordinated through a document store",
	Long:    `Gridcall is a command-line proximity video chat. Participants occupy tiles on a shared grid; audio volume follows tile distance, so conversations form naturally between neighbors. Rooms are coordinated through a shared document store and media flows peer-to-peer over WebRTC.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
