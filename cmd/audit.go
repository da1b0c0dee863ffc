package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	sqlitearchive "github.com/bnema/cuedesk/internal/adapters/audit/sqlite"
	chatview "github.com/bnema/cuedesk/internal/adapters/render/chat"
	"github.com/spf13/cobra"
)

func newAuditCmd(app *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show executed actions from the audit archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}

			path := app.config.GetString("audit.sqlite_path")
			if path == "" {
				return errors.New("audit archive is disabled (audit.sqlite_path is empty)")
			}
			archive, err := sqlitearchive.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			entries, err := archive.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read audit archive: %w", err)
			}

			if asJSON {
				encoded, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("encode audit entries: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return err
			}

			output, err := chatview.RenderAudit(entries, chatview.RenderOptions{Now: app.now()})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output entries as JSON")

	return cmd
}
