/*
Copyright 2025 Lucas Chagas <lucas.w.chagas@gmail.com>
*/
package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options holds global configuration for all commands
type Options struct {
	// Verbose enables detailed debug logging
	Verbose bool

	// OutputDir is the directory where output files will be saved
	OutputDir string

	// AbsOutputDir is the resolved absolute path of OutputDir
	// This is computed during command execution
	AbsOutputDir string

	// ForceOverwrite when true allows overwriting existing files
	// When false (default), existing output files are skipped with a warning
	ForceOverwrite bool

	// MetricsAddr, if non-empty, serves Prometheus decoder metrics on this address.
	MetricsAddr string

	// LiveAddr, if non-empty, starts a WebSocket server fanning out decoded PCM.
	LiveAddr string

	// DumpRawDir, if non-empty, archives each player's raw sub-packet stream here.
	DumpRawDir string
}

// Opts is the global options instance used by all commands
var Opts Options

// verbose is a package-private variable for backward compatibility with direct flag binding
// All new code should use Opts.Verbose or IsVerbose() instead
var verbose bool

// IsVerbose returns whether verbose mode is enabled
// Use this function instead of accessing the verbose variable directly
func IsVerbose() bool {
	return Opts.Verbose
}

// resolveOutputDir ensures the output directory is ready for use
// It resolves the absolute path and creates the directory if needed
func resolveOutputDir() error {
	// Use current directory if no output dir specified
	if Opts.OutputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		Opts.AbsOutputDir = cwd
		return nil
	}

	// If path isn't absolute, make it absolute
	if !filepath.IsAbs(Opts.OutputDir) {
		absPath, err := filepath.Abs(Opts.OutputDir)
		if err != nil {
			return err
		}
		Opts.AbsOutputDir = absPath
	} else {
		Opts.AbsOutputDir = Opts.OutputDir
	}

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(Opts.AbsOutputDir, 0755); err != nil { // Using 0755 (rwxr-xr-x) for directory permissions
		return err
	}

	return nil
}

// Default logger that other packages can import
var Logger *slog.Logger

// SetLogOutput sets the output writer for the logger
// Useful for testing or redirecting logs
func SetLogOutput(w io.Writer) {
	level := slog.LevelInfo
	if Opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}
	Logger = slog.New(slog.NewTextHandler(w, handlerOpts))
	slog.SetDefault(Logger)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "steamvoice",
	Aliases: []string{"sv"},
	Short:   "Decode and extract Steam voice-chat payloads from CS2 demos",
	Long: `steamvoice is a single binary that provides sub-commands to extract
and decode Steam's proprietary voice-chat format from CS2 demo files into
per-player WAV audio, with optional live streaming, metrics, and raw
sub-packet capture.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on verbose flag
		logLevel := slog.LevelInfo
		if Opts.Verbose {
			logLevel = slog.LevelDebug
		}

		// Configure the global logger with text handler
		handlerOpts := &slog.HandlerOptions{
			Level: logLevel,
		}
		Logger = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
		verbose = Opts.Verbose

		// Replace the default logger
		slog.SetDefault(Logger)

		// Resolve and prepare output directory
		if err := resolveOutputDir(); err != nil {
			slog.Error("Failed to set up output directory", "error", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Register flags directly with the Options struct
	rootCmd.PersistentFlags().BoolVarP(&Opts.Verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&Opts.OutputDir, "output-dir", "o", "", "directory to save output files (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&Opts.ForceOverwrite, "force", "f", false, "force overwrite existing files")
	rootCmd.PersistentFlags().StringVar(&Opts.MetricsAddr, "metrics-addr", "", "serve Prometheus decoder metrics on this address (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&Opts.LiveAddr, "live-addr", "", "serve a WebSocket live PCM feed on this address (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&Opts.DumpRawDir, "dump-raw", "", "archive each player's raw sub-packet stream to this directory (disabled if empty)")

	// For backward compatibility with code that might access the verbose variable directly.
	// PersistentPreRun copies Opts.Verbose into it once flags are parsed; this visit
	// only covers a flag already marked changed at init time
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "verbose" && f.Changed {
			verbose = Opts.Verbose
		}
	})
}
