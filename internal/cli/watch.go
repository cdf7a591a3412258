package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/technicia/chat-bfa/internal/chat/watcher"
	"github.com/technicia/chat-bfa/internal/domain"
)

func newWatchCmd(opts *options) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Index PDFs dropped into a folder",
		Long: `watch indexes every PDF created or modified in the folder (WATCH_DIR
when no argument is given) and prints the outcome of each upload.
Stop it with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			dir := a.cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no folder to watch: pass a directory or set WATCH_DIR")
			}
			if !a.svc.SupportsUpload() {
				return &domain.ErrUnsupported{Action: "upload"}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, a, dir, settle)
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", watcher.DefaultSettle, "delay before a new file is uploaded")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, dir string, settle time.Duration) error {
	out := newTranscript(cmd.OutOrStdout(), a)
	a.svc.EnsureSession(watcher.SessionID)
	w := watcher.New(a.svc, a.logger, watcher.WithSettle(settle))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx, dir)
	})
	g.Go(func() error {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				out.flush(a.svc.EnsureSession(watcher.SessionID))
			}
		}
	})
	return g.Wait()
}
