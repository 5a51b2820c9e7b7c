package main

import (
	"encoding/json"
	"fmt"

	"github.com/example/voiceapi/internal/profile"
	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage voice profiles in the configured store",
	}

	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileSetCmd())
	cmd.AddCommand(newProfileDeleteCmd())

	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print all voice profiles as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openProfileStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			all, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		},
	}
}

func newProfileSetCmd() *cobra.Command {
	p := profile.Params{}

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or replace a voice profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openProfileStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := store.Put(cmd.Context(), args[0], p); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Voice profile '%s' saved\n", args[0])
			return err
		},
	}

	def := profile.Defaults()["default"]
	cmd.Flags().Float64Var(&p.Exaggeration, "exaggeration", def.Exaggeration, "Emotion exaggeration")
	cmd.Flags().Float64Var(&p.CFGWeight, "cfg-weight", def.CFGWeight, "Classifier-free guidance weight")
	cmd.Flags().StringVar(&p.Description, "description", "", "Free-form description")

	return cmd
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a voice profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openProfileStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Voice profile '%s' deleted\n", args[0])
			return err
		},
	}
}
