package cmd

import (
	"context"
	"fmt"

	"github.com/mehtakaran9/gridcall/internal/config"
	"github.com/mehtakaran9/gridcall/internal/room"
	"github.com/mehtakaran9/gridcall/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagRoomName string
	flagUserName string
	flagRedis    string
	flagMemory   bool
	flagSTUN     string
	flagRows     int
	flagCols     int
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room and wait for others",
	Long: `Create a new room on the shared document store and enter it on the
first tile. Other participants join with the room name.

Examples:
  gridcall create --name alpaca --user alice
  gridcall create --user alice
  gridcall create --memory --name demo --user alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRoom()
	},
}

func createRoom() error {
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

	name := flagRoomName
	if name == "" {
		name = room.SuggestRoomName()
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

	ctrl, err := room.Create(ctx, rc.Deps(), name, flagUserName)
	if err != nil {
		return fmt.Errorf("create room %q: %w", name, err)
	}

	ui.PrintSuccess(fmt.Sprintf("Created room %q", name))
	return RunRoom(rc, ctrl)
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&flagRoomName, "name", "n", "", "Room name (random when omitted)")
	createCmd.Flags().StringVarP(&flagUserName, "user", "u", "", "Display name")
	createCmd.Flags().StringVarP(&flagRedis, "redis", "r", "", "Redis address of the shared store")
	createCmd.Flags().BoolVarP(&flagMemory, "memory", "m", false, "Use the in-process store")
	createCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	createCmd.Flags().IntVar(&flagRows, "rows", 0, "Grid rows")
	createCmd.Flags().IntVar(&flagCols, "cols", 0, "Grid columns")
}
