package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"
)

// Structs

// globalFlags are shared by all subcommands.
type globalFlags struct {
	config   string
	envFile  string
	loglevel string
	addr     string
}

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// newRootCmd assembles the orset command tree.
func newRootCmd() *cobra.Command {

	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "orset",
		Short: "Replicated observed-remove set",
		Long: `orset runs replicas of an observed-remove set that converge
by periodically exchanging their state, and talks to running
replicas from the command line.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.config, "config", "config.toml", "Provide path to configuration file in TOML syntax.")
	root.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "Provide path to an env file overriding host specific settings.")
	root.PersistentFlags().StringVar(&flags.loglevel, "loglevel", "debug", "This flag sets the default logging level.")

	root.AddCommand(
		newServeCmd(flags),
		newAddCmd(flags),
		newRemoveCmd(flags),
		newContainsCmd(flags),
		newListCmd(flags),
		newStateCmd(flags),
		newPKICmd(),
	)

	return root
}

func main() {

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
