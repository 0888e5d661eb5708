// Command narconet-updater applies a staged update once its host client
// process has exited. It is launched by the client itself (never by a user)
// immediately before the client terminates, per spec.md 4.11.
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/narconet/narconet/cmd"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/updater"
)

func rootMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("exactly one argument (host-pid) is required")
	}

	hostPID, err := strconv.Atoi(arguments[0])
	if err != nil {
		return errors.Wrap(err, "invalid host-pid")
	}

	installRoot, err := installRootFromExecutable()
	if err != nil {
		return errors.Wrap(err, "unable to determine installation root")
	}

	logger := logging.RootLogger
	if rootConfiguration.silent {
		logger = nil
	}

	if err := updater.Run(context.Background(), installRoot, hostPID, logger); err != nil {
		return errors.Wrap(err, "update failed")
	}

	if !rootConfiguration.silent {
		fmt.Println("Update applied successfully")
	}
	return nil
}

var rootCommand = &cobra.Command{
	Use:   "narconet-updater <host-pid>",
	Short: "Apply a staged NarcoNet client update",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(rootMain),
}

var rootConfiguration struct {
	// silent suppresses all log output, per spec.md 4.11's --silent flag.
	silent bool
	// help indicates whether help information should be shown.
	help bool
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.BoolVar(&rootConfiguration.silent, "silent", false, "Suppress log output")
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
