package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Example: `  technicia ask "What is the torque spec?"
  technicia ask --limit 3 quel est le couple de serrage`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			sess := a.svc.NewSession()
			state, err := a.svc.SubmitQuery(cmd.Context(), sess.ID, strings.Join(args, " "), 0)
			if err != nil {
				return err
			}
			return failed(newTranscript(cmd.OutOrStdout(), a).flush(state))
		},
	}
}
