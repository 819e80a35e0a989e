package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Execute runs the tilepaper CLI with the process arguments and returns an
// error if any command fails.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//   - With --quiet (-q): errors only
//
// Example:
//
//	func main() {
//	    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer cancel()
//	    if err := cli.Execute(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	c.SetOutput(os.Stdout)
	return c.command().ExecuteContext(ctx)
}

// command returns the root command with the verbosity flags bound to the
// CLI's logger.
func (c *CLI) command() *cobra.Command {
	var verbose, quiet bool

	root := c.RootCommand()
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c.SetLogLevel(levelFor(verbose, quiet))
		return nil
	}
	return root
}

func levelFor(verbose, quiet bool) charmlog.Level {
	switch {
	case verbose:
		return charmlog.DebugLevel
	case quiet:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}
