package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"medchat/internal/api"
	"medchat/internal/provision"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "medchat" {
		t.Errorf("Expected Use to be 'medchat', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: ExitCodeError,
		},
		{
			name: "auth error",
			err:  api.NewStatusError(401, nil, "/users/me"),
			want: ExitCodeAuthRequired,
		},
		{
			name: "wrapped auth error",
			err:  fmt.Errorf("request failed: %w", api.NewStatusError(403, nil, "/patients/")),
			want: ExitCodeAuthRequired,
		},
		{
			name: "server error",
			err:  api.NewStatusError(500, nil, "/patients/"),
			want: ExitCodeError,
		},
		{
			name: "recoverable provisioning failure",
			err:  &provision.Failure{Message: "timed out", Recoverable: true},
			want: ExitCodeError,
		},
		{
			name: "non-recoverable provisioning failure",
			err:  &provision.Failure{Message: "session expired", Recoverable: false},
			want: ExitCodeAuthRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVersionCommandExecution(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = testVersion

	versionCmd := newVersionCmd()

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	output := buf.String()
	if !strings.Contains(output, testVersion) {
		t.Errorf("Expected output to contain version %s, got %s", testVersion, output)
	}
	if !strings.Contains(output, "medchat version") {
		t.Errorf("Expected output to contain 'medchat version', got %s", output)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	expected := []string{
		"login", "signup", "logout", "status", "ask", "chat",
		"patients", "version", "self-update",
	}

	registered := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		registered[sub.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}
