package cmd

import (
	"errors"
	"fmt"
	"time"

	chatview "github.com/bnema/cuedesk/internal/adapters/render/chat"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change runtime settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetCmd(app),
	)

	return cmd
}

func newConfigShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := app.loadSettings(cmd.Context())
			if err != nil {
				return err
			}

			output, err := chatview.RenderStatus(chatview.StatusView{Settings: settings})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}
}

func newConfigSetCmd(app *app) *cobra.Command {
	var (
		mode        string
		model       string
		endpoint    string
		maxTokens   int
		temperature float64
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings and persist them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			var patch domain.SettingsPatch
			if flags.Changed("mode") {
				m := domain.Mode(mode)
				patch.Mode = &m
			}
			if flags.Changed("model") {
				patch.Model = &model
			}
			if flags.Changed("endpoint") {
				patch.Endpoint = &endpoint
			}
			if flags.Changed("max-tokens") {
				patch.MaxTokens = &maxTokens
			}
			if flags.Changed("temperature") {
				patch.Temperature = &temperature
			}
			if flags.Changed("timeout") {
				patch.Timeout = &timeout
			}
			if patch == (domain.SettingsPatch{}) {
				return errors.New("nothing to change: pass at least one flag")
			}

			engine, err := app.engine(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := engine.SetConfig(cmd.Context(), patch)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved: mode=%s model=%s endpoint=%s\n",
				settings.Mode, settings.Reasoning.Model, settings.Reasoning.Endpoint)
			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "auto or offline")
	cmd.Flags().StringVar(&model, "model", "", "Reasoning model name")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "OpenAI-compatible API base URL")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens per reply")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout")

	return cmd
}
