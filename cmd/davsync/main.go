package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/utils"
	"github.com/davsync/davsync/internal/version"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitConflict = 2
)

// errConflict is returned after a conflict was reported to the user.
var errConflict = errors.New("conflict detected")

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "davsync",
	Short:         "Keep a local file in sync with a WebDAV server",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	logLevel.Set(slog.LevelWarn)
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "davsync config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logFile, closeLog := openLogFile(config.DefaultLogFilePath)
	defer closeLog()
	slog.SetDefault(slog.New(newLogHandler(logFile)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeLog()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConflict):
		return exitConflict
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", red.Render("ERROR:"), friendly(err))
		return exitFailure
	}
}

// openLogFile returns nil when the log file cannot be created.
func openLogFile(path string) (*utils.LogInterceptor, func()) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() {}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, func() {}
	}

	interceptor := utils.NewLogInterceptor(file)
	closed := false
	return interceptor, func() {
		if closed {
			return
		}
		closed = true
		interceptor.Close()
		file.Close()
	}
}

// newLogHandler logs to stderr at logLevel and everything to the log file.
func newLogHandler(logFile *utils.LogInterceptor) slog.Handler {
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	if logFile == nil {
		return stderrHandler
	}

	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	return utils.NewMultiLogHandler(stderrHandler, fileHandler)
}
