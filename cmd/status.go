package cmd

import (
	"os"
	"time"

	"medchat/internal/api"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and connection status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.store.Get()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("Field"),
		text.FgHiCyan.Sprint("Value"),
	})

	t.AppendRow(table.Row{"Server", a.cfg.API.BaseURL})
	if path := a.store.Path(); path != "" {
		t.AppendRow(table.Row{"Credentials", path})
	} else {
		t.AppendRow(table.Row{"Credentials", text.FgYellow.Sprint("in-memory only")})
	}

	switch {
	case !snap.HasAccessToken() && !snap.HasRefreshToken():
		t.AppendRow(table.Row{"Session", text.FgRed.Sprint("signed out")})
	case !snap.ToOAuth2Token().Valid():
		t.AppendRow(table.Row{"Session", text.FgYellow.Sprint("expired (will refresh)")})
	default:
		t.AppendRow(table.Row{"Session", text.FgGreen.Sprint("signed in")})
	}
	if !snap.ExpiresAt.IsZero() {
		t.AppendRow(table.Row{"Token expires", snap.ExpiresAt.Local().Format(time.RFC1123)})
	}
	if snap.APIKey != "" {
		t.AppendRow(table.Row{"API key", "stored"})
	}

	if a.signedIn() {
		if profile, err := a.client.GetProfile(cmd.Context()); err == nil {
			t.AppendRow(table.Row{"Account", profile.Email})
			if profile.FullName != "" {
				t.AppendRow(table.Row{"Name", profile.FullName})
			}
		} else {
			t.AppendRow(table.Row{"Account", text.FgYellow.Sprint(api.UserMessage(err, true))})
		}
	}

	t.Render()
	return nil
}
