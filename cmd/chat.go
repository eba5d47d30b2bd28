package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"medchat/internal/stream"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	chatPatientID string
	chatClinician bool
)

// newChatCmd creates the chat command.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive session where each line you enter is sent as a
question and the answer is streamed back. Type 'exit' or press Ctrl-D
to leave; Ctrl-C interrupts a running answer.`,
		RunE: runChat,
	}

	cmd.Flags().StringVar(&chatPatientID, "patient", "", "patient ID to ask about (default is your own profile)")
	cmd.Flags().BoolVar(&chatClinician, "clinician", false, "answer in clinician mode")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.signedIn() {
		return fmt.Errorf("not signed in, run 'medchat login' first")
	}

	patient, err := a.ensurePatient(cmd.Context(), chatPatientID)
	if err != nil {
		return err
	}

	historyFile := ""
	if dir := a.store.Path(); dir != "" {
		historyFile = filepath.Join(filepath.Dir(dir), "chat_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          text.FgHiCyan.Sprint("medchat> "),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting about %s %s. Type 'exit' to leave.\n\n",
		patient.FirstName, patient.LastName)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		// Each question gets its own interrupt scope so Ctrl-C stops
		// the answer without ending the session.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		if err := streamAnswer(ctx, a, stream.Request{
			PatientID:     patient.ID,
			Question:      question,
			ClinicianMode: chatClinician,
		}); err != nil {
			fmt.Printf("%s %v\n", text.FgRed.Sprint("✗"), err)
		}
		cancel()
		fmt.Println()
	}

	fmt.Println("Goodbye.")
	return nil
}
