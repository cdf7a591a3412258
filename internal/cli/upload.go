package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Index PDF documents",
		Long: `upload sends each file to the backend for indexing, one after the other.
Files that fail do not stop the others; the command fails if any did.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			sess := a.svc.NewSession()
			out := newTranscript(cmd.OutOrStdout(), a)

			var errs []error
			for _, path := range args {
				if err := uploadFile(cmd, a, out, sess.ID, path); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func uploadFile(cmd *cobra.Command, a *app, out *transcript, sessionID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	state, err := a.svc.UploadFile(cmd.Context(), sessionID, filepath.Base(path), f)
	if err != nil {
		return err
	}
	return failed(out.flush(state))
}
