package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const replHelp = `Posez vos questions. Commandes: /upload <fichier.pdf>, /quit`

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session",
		Long: `chat reads questions from standard input, one per line, and prints the
answers with their sources. "/upload <path>" indexes a PDF in the same
session and "/quit" (or end of input) leaves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			return runREPL(cmd, a)
		},
	}
}

func runREPL(cmd *cobra.Command, a *app) error {
	w := cmd.OutOrStdout()
	sess := a.svc.NewSession()
	out := newTranscript(w, a)

	fmt.Fprintln(w, replHelp)
	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(w, "> ")
		if !in.Scan() {
			fmt.Fprintln(w)
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/upload"):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload"))
			if path == "" {
				fmt.Fprintln(w, "usage: /upload <fichier.pdf>")
				continue
			}
			if err := uploadFile(cmd, a, out, sess.ID, path); err != nil && !isTranscribed(err) {
				fmt.Fprintf(w, "erreur> %v\n", err)
			}
		default:
			fmt.Fprintln(w, "technicia> ...")
			state, err := a.svc.SubmitQuery(cmd.Context(), sess.ID, line, 0)
			if err != nil {
				fmt.Fprintf(w, "erreur> %v\n", err)
				continue
			}
			out.flush(state)
		}
	}
}

// isTranscribed reports whether err came from a message already printed.
func isTranscribed(err error) bool {
	var t transcribedError
	return errors.As(err, &t)
}
