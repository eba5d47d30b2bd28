package cmd

import (
	"errors"
	"os"

	"medchat/internal/api"
	"medchat/internal/provision"
	"medchat/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands. These follow common conventions so
// scripts can distinguish "sign in first" from a general failure.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
)

var (
	// configPath overrides the default config directory.
	configPath string
	// logLevel selects the log verbosity.
	logLevel string
)

// rootCmd represents the base command for the medchat application.
var rootCmd = &cobra.Command{
	Use:   "medchat",
	Short: "Ask a clinical assistant about your patients from the terminal",
	Long: `medchat is a terminal client for the clinical-assistant API.
It keeps your session credentials fresh, provisions a patient profile
on first use, and streams answers to your questions as they are
generated.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(logLevel), os.Stderr)
	},
}

// SetVersion sets the version for the root command. Called from the
// main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "medchat version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if api.IsAuthError(err) {
		return ExitCodeAuthRequired
	}

	var failure *provision.Failure
	if errors.As(err, &failure) && !failure.Recoverable {
		return ExitCodeAuthRequired
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory (default is $HOME/.config/medchat)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSignupCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newPatientsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
