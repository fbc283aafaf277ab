package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/adelaroche/roam/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "roam",
		Usage: "A trip-planning assistant that follows up on its own ideas",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewAskCommand(),
			NewConversationsCommand(),
			NewPrefsCommand(),
			NewStatusCommand(),
		},
	}
}

// loadConfig loads config from the --config flag, falling back to defaults.
func loadConfig(cmd *cli.Command) *config.Config {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Default()
	}
	return cfg
}
