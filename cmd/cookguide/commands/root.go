package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/config"
	"github.com/haivivi/cookguide/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	contextName  string
	outputFormat string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cookguide",
	Short: "Real-time cooking assistant",
	Long: `cookguide - a cooking assistant that follows along with a recipe video.

A session compares the camera view with the video, answers questions,
helps fix problems and guides the cook to the next step. Sessions are
served over WebSocket or run interactively on the terminal.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/cookguide/
  Linux:   ~/.config/cookguide/
  Windows: %AppData%/cookguide/

Use 'cookguide config' to manage contexts and service configurations.

Examples:
  # Create a context and configure the models
  cookguide config add-context dev
  cookguide config set dev openai api_key '$OPENAI_API_KEY'
  cookguide config use-context dev

  # Serve sessions
  cookguide serve --knowledge s3://recipes/pasta.json

  # Or talk to one on the terminal
  cookguide chat --knowledge ./pasta.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.ParseFormat(outputFormat); err != nil {
			return err
		}
		slog.SetDefault(newLogger(cmd.ErrOrStderr()))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "config context (default: current context)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json or raw")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config report it through GetConfig.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// contextDir resolves --context, falling back to the current context. It
// returns "" when no context is configured.
func contextDir() (string, error) {
	cfg, err := GetConfig()
	if err != nil {
		return "", err
	}
	dir, ok, err := cfg.ResolveContext(contextName)
	if err != nil || !ok {
		return "", err
	}
	return dir, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// output writes v to the command's stdout in the --output format.
func output(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.Output(v, cli.OutputOptions{
		Format: format,
		Indent: "  ",
		Writer: cmd.OutOrStdout(),
	})
}
