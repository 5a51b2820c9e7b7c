package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/example/voiceapi/internal/server"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		addr         string
		requireReady bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}

			health, err := server.FetchHealth(cmd.Context(), addr)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(health); err != nil {
				return err
			}
			if requireReady && !health.AllModelsReady {
				return errors.New("models not loaded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to query")
	cmd.Flags().BoolVar(&requireReady, "require-ready", false, "Fail unless every configured model is loaded")

	return cmd
}
