package cmd

import (
	"fmt"
	"os"

	"medchat/internal/api"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var patientDOB string

func newPatientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Manage patient records",
	}

	cmd.AddCommand(newPatientsListCmd())
	cmd.AddCommand(newPatientsCreateCmd())
	return cmd
}

func newPatientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List patient records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.signedIn() {
				return fmt.Errorf("not signed in, run 'medchat login' first")
			}

			patients, err := a.client.ListPatients(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s", api.UserMessage(err, true))
			}

			if len(patients) == 0 {
				fmt.Println("No patient records found.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{
				text.FgHiCyan.Sprint("ID"),
				text.FgHiCyan.Sprint("First Name"),
				text.FgHiCyan.Sprint("Last Name"),
				text.FgHiCyan.Sprint("Date of Birth"),
			})
			for _, p := range patients {
				t.AppendRow(table.Row{p.ID, p.FirstName, p.LastName, p.DateOfBirth})
			}
			t.Render()
			return nil
		},
	}
}

func newPatientsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <first-name> <last-name>",
		Short: "Create a patient record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.signedIn() {
				return fmt.Errorf("not signed in, run 'medchat login' first")
			}

			patient, err := a.client.CreatePatient(cmd.Context(), api.CreatePatientRequest{
				FirstName:   args[0],
				LastName:    args[1],
				DateOfBirth: patientDOB,
			})
			if err != nil {
				return fmt.Errorf("%s", api.UserMessage(err, true))
			}

			fmt.Printf("%s Created patient %s %s (%s)\n",
				text.FgGreen.Sprint("✓"), patient.FirstName, patient.LastName, patient.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&patientDOB, "dob", "", "date of birth (YYYY-MM-DD)")
	return cmd
}
