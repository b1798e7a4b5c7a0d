package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/simpl-chat/internal/config"
	"github.com/spf13/cobra"
)

const rootLongDesc string = `simpl is a small AI chat assistant for the terminal.

It talks to the completion backend configured in the YAML config file, or to a
deployed simpl chat function when functionURL is set. Credentials may also come
from the environment or a .env file in the working directory.`

type rootCommander struct {
	configPath string
	debug      bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:          "simpl",
		Short:        "Chat with the simpl AI assistant",
		Long:         rootLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return cmder.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&cmder.configPath, "config", "c", defaultConfigPath(), "Path to the config file")
	cmd.PersistentFlags().BoolVar(&cmder.debug, "debug", false, "Log requests to stderr")

	cmd.AddCommand(newChatCmd(cmder))
	cmd.AddCommand(newAskCmd(cmder))

	return cmd
}

func (c *rootCommander) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	c.cfg = cfg

	level := slog.LevelWarn
	if c.debug || cfg.Debug {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return nil
}

func defaultConfigPath() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(cfgDir, "simpl", "config.yaml")
}
