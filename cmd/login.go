package cmd

import (
	"fmt"
	"strings"

	"medchat/internal/api"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var loginEmail string

// newLoginCmd creates the login command.
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store session credentials",
		Long: `Sign in with your email and password. The issued access and
refresh tokens are stored under the config directory and renewed
automatically on subsequent commands.`,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted if omitted)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	email := strings.TrimSpace(loginEmail)

	rl, err := readline.New("Email: ")
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	if email == "" {
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("login aborted")
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("an email address is required")
	}

	password, err := rl.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("login aborted")
	}

	token, err := a.client.Login(cmd.Context(), email, string(password))
	if err != nil {
		return fmt.Errorf("%s", api.UserMessage(err, false))
	}

	a.persistTokens(token)
	fmt.Printf("%s Signed in as %s\n", text.FgGreen.Sprint("✓"), email)

	// Make sure the account has a patient profile before the first
	// question. A failure here is reported but does not undo the login.
	patient, err := a.ensurePatient(cmd.Context(), "")
	if err != nil {
		fmt.Printf("%s %v\n", text.FgYellow.Sprint("!"), err)
		return nil
	}

	fmt.Printf("%s Patient profile ready: %s %s (%s)\n",
		text.FgGreen.Sprint("✓"), patient.FirstName, patient.LastName, patient.ID)
	return nil
}
