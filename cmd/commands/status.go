package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/adelaroche/roam/internal/config"
	"github.com/adelaroche/roam/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show Roam daemon status",
		Action: func(_ context.Context, _ *cli.Command) error {
			hbPath := filepath.Join(config.RoamPath(), "heartbeat.json")
			status, hb, err := heartbeat.Check(hbPath, 2*time.Minute)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				fmt.Printf("Daemon: ALIVE (PID %d, %s, uptime %s)\n", hb.PID, hb.Addr, hb.Uptime)
			case heartbeat.StatusStale:
				fmt.Printf("Daemon: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Daemon: NOT RUNNING")
			}

			return nil
		},
	}
}
