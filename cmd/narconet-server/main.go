// Command narconet-server exposes one installation's tree over the
// /narconet HTTP surface (C7): version, sync paths, exclusions, hashes,
// sequence, changes, recheck, and fetch, per spec.md 4.7.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/narconet/narconet/cmd"
	"github.com/narconet/narconet/pkg/changelog"
	"github.com/narconet/narconet/pkg/config"
	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/server"
	"github.com/narconet/narconet/pkg/snapshot"
)

func rootMain(command *cobra.Command, arguments []string) error {
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

	logger := logging.RootLogger.Sublogger("server")

	configurationPath := rootConfiguration.configPath
	if configurationPath == "" {
		configurationPath = filepath.Join(installRoot, "narconet.yml")
	}
	configuration, err := config.Load(configurationPath)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}

	syncPaths := configuration.TreeSyncPaths()
	if len(syncPaths) == 0 {
		return errors.Errorf("no sync paths configured in %q", configurationPath)
	}

	serverExclusions, err := ignore.Compile(configuration.Exclusions)
	if err != nil {
		return errors.Wrap(err, "unable to compile exclusions")
	}

	layout := config.NewLayout(installRoot)
	detector := changelog.NewDetector(
		installRoot,
		serverExclusions,
		logger,
		snapshot.NewStore(layout.Snapshot(), logger),
		changelog.NewStore(layout.ChangeLog(), logger),
	)
	detector.Load()

	logger.Println("Performing startup scan")
	startupChanges, err := detector.DetectChanges(context.Background(), syncPaths)
	if err != nil {
		return errors.Wrap(err, "startup scan failed")
	}
	logger.Printf("Startup scan recorded %d change(s)", len(startupChanges))

	srv := server.New(installRoot, syncPaths, configuration.Exclusions, serverExclusions, detector, logger)

	httpServer := &http.Server{
		Addr:    rootConfiguration.listenAddress,
		Handler: srv.Router(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.HousekeepRegularly(ctx, detector, rootConfiguration.pruneMaxAge, logger)

	serveErrors := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", rootConfiguration.listenAddress)
		serveErrors <- httpServer.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, cmd.TerminationSignals...)

	select {
	case err := <-serveErrors:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server failed")
		}
	case <-signals:
		logger.Println("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "unable to shut down cleanly")
		}
	}
	return nil
}

var rootCommand = &cobra.Command{
	Use:   "narconet-server",
	Short: "Serve an installation's tree over the NarcoNet protocol",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(rootMain),
}

var rootConfiguration struct {
	// installRoot is the directory being served. If empty, the working
	// directory is used.
	installRoot string
	// configPath is the configuration file path. If empty, narconet.yml
	// under the installation root is used.
	configPath string
	// listenAddress is the HTTP listen address, e.g. ":7723".
	listenAddress string
	// pruneMaxAge is how old a change-log entry must be before it is
	// dropped, per spec.md 4.6.
	pruneMaxAge time.Duration
	// logLevel names the logging.Level to filter output through: disabled,
	// error, warn, info, debug, or trace.
	logLevel string
	// help indicates whether help information should be shown.
	help bool
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&rootConfiguration.installRoot, "install-root", "", "Directory to serve (default: working directory)")
	flags.StringVar(&rootConfiguration.configPath, "config", "", "Configuration file path (default: <install-root>/narconet.yml)")
	flags.StringVarP(&rootConfiguration.listenAddress, "listen", "l", ":7723", "HTTP listen address")
	flags.DurationVar(&rootConfiguration.pruneMaxAge, "prune-max-age", 30*24*time.Hour, "Maximum age of retained change-log entries")
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "info", "Logging level (disabled|error|warn|info|debug|trace)")
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
