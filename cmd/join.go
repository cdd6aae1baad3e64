package cmd

import (
	"context"
	"fmt"

	"github.com/mehtakaran9/gridcall/internal/config"
	"github.com/mehtakaran9/gridcall/internal/room"
	"github.com/mehtakaran9/gridcall/internal/ui"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room by name. You land on the first free tile and a peer
session is set up with every participant already in the room.

Examples:
  gridcall join alpaca --user bob
  gridcall join alpaca --user bob --redis redis.example.com:6379`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(name string) error {
	cfg, err := LoadConfig(config.Options{
		RedisAddr:   flagRedis,
		MemoryStore: flagMemory,
		STUNServer:  flagSTUN,
		Rows:        flagRows,
		Cols:        flagCols,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Opening store...")
	defer stopSpinner()
	ctx := context.Background()
	rc, err := NewRoomContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer rc.Close()
	stopSpinner()

	ctrl, err := room.Join(ctx, rc.Deps(), name, flagUserName)
	if err != nil {
		return fmt.Errorf("join room %q: %w", name, err)
	}

	ui.PrintSuccess(fmt.Sprintf("Joined room %q as %s", name, ctrl.LocalID()))
	return RunRoom(rc, ctrl)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagUserName, "user", "u", "", "Display name")
	joinCmd.Flags().StringVarP(&flagRedis, "redis", "r", "", "Redis address of the shared store")
	joinCmd.Flags().BoolVarP(&flagMemory, "memory", "m", false, "Use the in-process store")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().IntVar(&flagRows, "rows", 0, "Grid rows")
	joinCmd.Flags().IntVar(&flagCols, "cols", 0, "Grid columns")
}
