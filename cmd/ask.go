package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"medchat/internal/api"
	"medchat/internal/stream"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	askPatientID string
	askClinician bool
)

// newAskCmd creates the ask command.
func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and stream the answer",
		Long: `Ask a single question about a patient. The answer is streamed to
the terminal as it is generated. The question is scoped to your own
patient profile unless --patient selects another record.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askPatientID, "patient", "", "patient ID to ask about (default is your own profile)")
	cmd.Flags().BoolVar(&askClinician, "clinician", false, "answer in clinician mode")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.signedIn() {
		return fmt.Errorf("not signed in, run 'medchat login' first")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	patient, err := a.ensurePatient(ctx, askPatientID)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	return streamAnswer(ctx, a, stream.Request{
		PatientID:     patient.ID,
		Question:      question,
		ClinicianMode: askClinician,
	})
}

// streamAnswer runs a single streaming request, showing a spinner until
// the first chunk arrives and printing chunks as they come in.
func streamAnswer(ctx context.Context, a *app, req stream.Request) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Thinking..."
	s.Start()

	var once sync.Once
	stopSpinner := func() {
		once.Do(s.Stop)
	}
	defer stopSpinner()

	err := a.streamer.Stream(ctx, req,
		func(chunk string) {
			stopSpinner()
			fmt.Print(chunk)
		},
		func() {
			stopSpinner()
			fmt.Println()
		},
	)
	if err != nil {
		stopSpinner()
		if errors.Is(err, context.Canceled) {
			fmt.Println()
			return nil
		}
		return fmt.Errorf("%s", api.UserMessage(err, a.signedIn()))
	}
	return nil
}
