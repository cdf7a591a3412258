// Package cli is the terminal client. It runs the same chat service as the
// BFA in-process, against the configured TechnicIA backend, and prints
// transcripts with the text renderer.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// options are the global flags. Unset flags fall back to the environment.
type options struct {
	envFile    string
	backendURL string
	profile    string
	limit      int
	timeout    time.Duration
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "technicia",
		Short: "Terminal client for the TechnicIA document assistant",
		Long: `technicia uploads PDF documents to the TechnicIA backend for indexing
and asks questions about them, printing answers with their sources.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	f := root.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&opts.backendURL, "backend-url", "", "TechnicIA backend base URL (env BACKEND_URL)")
	f.StringVar(&opts.profile, "profile", "", `backend profile, "index" or "chat" (env BACKEND_PROFILE)`)
	f.IntVar(&opts.limit, "limit", 0, "number of sources requested per query (env QUERY_LIMIT)")
	f.DurationVar(&opts.timeout, "timeout", 0, "backend request timeout (env HTTP_TIMEOUT)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newAskCmd(opts),
		newUploadCmd(opts),
		newChatCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// Execute runs the CLI and exits with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
