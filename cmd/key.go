package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the reasoning backend API key",
	}

	cmd.AddCommand(
		newKeySetCmd(app),
		newKeyRemoveCmd(app),
	)

	return cmd
}

func newKeySetCmd(app *app) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API key (reads stdin when --value is omitted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("value") {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read api key: %w", err)
				}
				value = line
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("api key is empty")
			}

			ref := app.config.GetString("reasoning.key_ref")
			if err := app.credentials.Store(cmd.Context(), ref, value); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored API key as %s\n", ref)
			return err
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "API key value")

	return cmd
}

func newKeyRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := app.config.GetString("reasoning.key_ref")
			if err := app.credentials.Remove(cmd.Context(), ref); err != nil {
				return fmt.Errorf("remove api key: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed API key %s\n", ref)
			return err
		},
	}
}
