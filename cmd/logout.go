package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.signedIn() {
				fmt.Println("Not signed in.")
				return nil
			}

			a.store.Clear()
			fmt.Printf("%s Signed out\n", text.FgGreen.Sprint("✓"))
			return nil
		},
	}
}
