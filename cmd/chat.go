package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	chatview "github.com/bnema/cuedesk/internal/adapters/render/chat"
	"github.com/bnema/cuedesk/internal/application"
	"github.com/bnema/cuedesk/internal/domain"
	"github.com/spf13/cobra"
)

func newChatCmd(app *app) *cobra.Command {
	var (
		sessionID string
		stream    bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "chat [text...]",
		Short: "Send one message to the desk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			engine, err := app.engine(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stream && !asJSON {
				for event := range engine.ChatStream(cmd.Context(), text, sessionID) {
					_, _ = fmt.Fprint(out, chatview.Event(event))
				}
				return nil
			}

			var resp application.Response
			if asJSON {
				resp = engine.Chat(cmd.Context(), text, sessionID)
			} else {
				resp, err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) application.Response {
					return engine.Chat(ctx, text, sessionID)
				})
				if err != nil {
					return err
				}
			}

			return writeResponse(cmd, resp, asJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", domain.DefaultSessionID, "Session id")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print the reply as it is produced")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the response as JSON")

	return cmd
}

func writeResponse(cmd *cobra.Command, resp application.Response, asJSON bool) error {
	if asJSON {
		encoded, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return err
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), chatview.Response(resp))
	return err
}
