package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cuedesk",
		Short:         "cuedesk: talk to your lighting desk",
		Long:          "cuedesk turns plain-language requests into lighting controller actions. It uses a remote language model when one is reachable, falls back to a local command matcher, and asks before anything destructive or disruptive happens.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(commandStderr{cmd: rootCmd})
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.Close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newChatCmd(app),
		newReplCmd(app),
		newAuditCmd(app),
		newConfigCmd(app),
		newKeyCmd(app),
	)

	return rootCmd
}

// commandStderr resolves the command's error stream at write time so
// SetErr calls made after construction still apply to the logger.
type commandStderr struct {
	cmd *cobra.Command
}

func (w commandStderr) Write(p []byte) (int, error) {
	return w.cmd.ErrOrStderr().Write(p)
}

var _ io.Writer = commandStderr{}
