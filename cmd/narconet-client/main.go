// Command narconet-client drives one NarcoNet sync run against a single
// server: it fetches the server's sync paths and hashes, diffs them against
// the local installation, downloads what's changed, and either applies the
// result in place or stages it for narconet-updater, per spec.md 4.12.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/narconet/narconet/cmd"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/orchestrator"
)

func rootMain(command *cobra.Command, arguments []string) error {
	if rootConfiguration.baseURL == "" {
		return errors.New("--server is required")
	}

	level, ok := logging.NameToLevel(rootConfiguration.logLevel)
	if !ok {
		return errors.Errorf("invalid log level %q", rootConfiguration.logLevel)
	}
	logging.SetLevel(level)

	installRoot := rootConfiguration.installRoot
	if installRoot == "" {
		resolved, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "unable to determine installation root")
		}
		installRoot = resolved
	}

	logger := logging.RootLogger.Sublogger("client")

	o := &orchestrator.Orchestrator{
		BaseURL:     rootConfiguration.baseURL,
		InstallRoot: installRoot,
		Logger:      logger,
		Headless:    rootConfiguration.headless,
		Silent:      rootConfiguration.silent,
		UpdaterPath: rootConfiguration.updaterPath,
	}
	if !rootConfiguration.headless && !rootConfiguration.silent {
		o.Prompt = promptForOptionalUpdates
	}

	summary, err := o.Run(context.Background())
	if err != nil {
		return errors.Wrap(err, "sync failed")
	}

	if !rootConfiguration.silent {
		printSummary(summary)
	}

	if summary.RestartRequired {
		os.Exit(3)
	}
	return nil
}

// printSummary renders the outcome of a Run to standard output, in the
// terse one-line-per-fact style the rest of the core's logging uses.
func printSummary(summary *orchestrator.Summary) {
	if summary.UpdateCount == 0 {
		fmt.Println("Already up to date.")
		return
	}
	if !summary.Applied {
		fmt.Println("Updates were available but were not applied.")
		return
	}
	if summary.RestartRequired {
		fmt.Printf("Applied %d update(s); restart required to finish.\n", summary.UpdateCount)
		return
	}
	fmt.Printf("Applied %d update(s).\n", summary.UpdateCount)
}

var rootCommand = &cobra.Command{
	Use:   "narconet-client",
	Short: "Synchronize this installation against a NarcoNet server",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(rootMain),
}

var rootConfiguration struct {
	// baseURL is the NarcoNet server's base URL, e.g. http://host:port/narconet.
	baseURL string
	// installRoot is the local installation directory to synchronize. If
	// empty, the working directory is used.
	installRoot string
	// headless suppresses prompts and creates default state files when
	// missing, per spec.md 4.12 step 4.
	headless bool
	// silent suppresses prompts and all non-error output.
	silent bool
	// updaterPath overrides the resolved path to narconet-updater.
	updaterPath string
	// logLevel names the logging.Level to filter output through: disabled,
	// error, warn, info, debug, or trace.
	logLevel string
	// help indicates whether help information should be shown.
	help bool
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.StringVarP(&rootConfiguration.baseURL, "server", "s", "", "NarcoNet server base URL")
	flags.StringVar(&rootConfiguration.installRoot, "install-root", "", "Installation directory to synchronize (default: working directory)")
	flags.BoolVar(&rootConfiguration.headless, "headless", false, "Run without prompting, creating default state if missing")
	flags.BoolVar(&rootConfiguration.silent, "silent", false, "Suppress prompts and non-error output")
	flags.StringVar(&rootConfiguration.updaterPath, "updater-path", "", "Path to the narconet-updater executable")
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "info", "Logging level (disabled|error|warn|info|debug|trace)")
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
}

func main() {
	cmd.HandleTerminalCompatibility()
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
