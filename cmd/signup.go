package cmd

import (
	"fmt"
	"strings"

	"medchat/internal/api"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	signupEmail    string
	signupFullName string
)

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE:  runSignup,
	}

	cmd.Flags().StringVar(&signupEmail, "email", "", "account email (prompted if omitted)")
	cmd.Flags().StringVar(&signupFullName, "name", "", "full name (prompted if omitted)")
	return cmd
}

func runSignup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rl, err := readline.New("Email: ")
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	email := strings.TrimSpace(signupEmail)
	if email == "" {
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("signup aborted")
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("an email address is required")
	}

	fullName := strings.TrimSpace(signupFullName)
	if fullName == "" {
		rl.SetPrompt("Full name: ")
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("signup aborted")
		}
		fullName = strings.TrimSpace(line)
	}

	password, err := rl.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("signup aborted")
	}

	token, err := a.client.Signup(cmd.Context(), email, string(password), fullName)
	if err != nil {
		return fmt.Errorf("%s", api.UserMessage(err, false))
	}

	a.persistTokens(token)
	fmt.Printf("%s Account created. Signed in as %s\n", text.FgGreen.Sprint("✓"), email)

	patient, err := a.ensurePatient(cmd.Context(), "")
	if err != nil {
		fmt.Printf("%s %v\n", text.FgYellow.Sprint("!"), err)
		return nil
	}

	fmt.Printf("%s Patient profile ready: %s %s (%s)\n",
		text.FgGreen.Sprint("✓"), patient.FirstName, patient.LastName, patient.ID)
	return nil
}
