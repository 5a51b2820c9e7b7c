package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/voiceapi/internal/config"
	"github.com/example/voiceapi/internal/server"
	"github.com/spf13/cobra"
)

const (
	groupServing = "serving"
	groupTools   = "tools"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "voiceapi",
		Short: "Voice API gateway: TTS, voice conversion and transcription",
		Long: fmt.Sprintf(`voiceapi fronts speech model servers with one HTTP API.

Settings come from flags, %s_* environment variables and an optional
voiceapi.{yaml,toml,json} in the working directory, in that order.`, config.EnvPrefix),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig(defaults),
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./voiceapi.{yaml,toml,json} when present)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddGroup(
		&cobra.Group{ID: groupServing, Title: "Serving:"},
		&cobra.Group{ID: groupTools, Title: "Tools:"},
	)
	for _, sub := range []*cobra.Command{newServeCmd(), newWorkerCmd()} {
		sub.GroupID = groupServing
		cmd.AddCommand(sub)
	}
	for _, sub := range []*cobra.Command{
		newSynthCmd(), newBenchCmd(), newProfileCmd(), newHealthCmd(), newDoctorCmd(),
	} {
		sub.GroupID = groupTools
		cmd.AddCommand(sub)
	}

	return cmd
}

// loadConfig resolves the configuration for the invoked subcommand and
// installs its logger as the slog default.
func loadConfig(defaults config.Config) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(config.LoadOptions{
			Cmd:        cmd,
			ConfigFile: cfgFile,
			Defaults:   defaults,
		})
		if err != nil {
			return err
		}
		activeCfg = loaded

		logger, err := newLogger(loaded.LogLevel, cmd.ErrOrStderr())
		slog.SetDefault(logger.With(slog.String("command", cmd.Name())))
		if err != nil {
			slog.Warn("falling back to info logging", slog.String("error", err.Error()))
		}
		return nil
	}
}

// newLogger returns a JSON logger writing to w. An unknown level yields an
// info-level logger together with the parse error.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := server.ParseLogLevel(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), err
}

func requireConfig() (config.Config, error) {
	if activeCfg.Server.ListenAddr == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}
