package main

import (
	"fmt"

	"github.com/danmuck/gatectl/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check a gatectl config file",
	}
	cmd.AddCommand(configInitCmd(), configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config (.toml, or .yaml/.yml)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "gatectl.toml", "Path of the config file to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(path)
			if err != nil {
				return err
			}
			if _, _, err := f.AdminServerConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok (%d bots)\n", path, len(f.Bots))
			for _, bot := range f.Bots {
				source := "token"
				if bot.Token == "" {
					source = "$" + bot.TokenEnv
				}
				fmt.Fprintf(out, "  %s intents=%d credential=%s\n", bot.Alias, bot.Intents, source)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "gatectl.toml", "Config file to validate")
	return cmd
}
