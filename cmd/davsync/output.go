package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/davsync/davsync/internal/cloudsync"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

var (
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

func friendly(err error) string {
	if _, ok := daverr.As(err); ok {
		return daverr.FriendlyMessage(err)
	}
	return err.Error()
}

func writeJSON(w io.Writer, v any) error {
	data, err := utils.JSONMarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func field(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "%s %v\n", gray.Render(fmt.Sprintf("%-16s", name)), value)
}

func printResult(w io.Writer, res *cloudsync.SyncResult) {
	switch {
	case res.Success:
		fmt.Fprintln(w, green.Render("✔ "+res.Message))
	case res.Action == cloudsync.ConflictDetected:
		fmt.Fprintln(w, yellow.Render("! "+res.Message))
	default:
		fmt.Fprintln(w, red.Render("✘ "+res.Message))
	}

	field(w, "Action", res.Action)
	if res.BytesTransferred > 0 {
		field(w, "Transferred", humanize.Bytes(uint64(res.BytesTransferred)))
	}
	if res.LocalChecksum != "" {
		field(w, "Local SHA-256", res.LocalChecksum)
	}
	if res.RemoteChecksum != "" {
		field(w, "Remote SHA-256", res.RemoteChecksum)
	}
	if res.LocalBackupPath != "" {
		field(w, "Local backup", res.LocalBackupPath)
	}
	if res.RemoteBackupPath != "" {
		field(w, "Remote backup", res.RemoteBackupPath)
	}
	if res.ConflictDetails != "" {
		field(w, "Details", res.ConflictDetails)
	}
	if res.Action == cloudsync.ConflictDetected && !res.Success {
		fmt.Fprintln(w, lightGray.Render("Run 'davsync resolve' to pick a version."))
	}
}

func printConflict(w io.Writer, info *cloudsync.ConflictInfo) {
	fmt.Fprintln(w, yellow.Render("! local and remote files differ"))
	field(w, "Local", fmt.Sprintf("%s, modified %s", humanize.Bytes(uint64(info.LocalSize)), when(info.LocalModified)))
	field(w, "Remote", fmt.Sprintf("%s, modified %s", humanize.Bytes(uint64(info.RemoteSize)), when(info.RemoteModified)))
	field(w, "Local SHA-256", info.LocalChecksum)
	field(w, "Remote SHA-256", info.RemoteChecksum)
}

func when(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04:05"), humanize.Time(t))
}

// resultErr maps an unsuccessful result to the command error.
func resultErr(res *cloudsync.SyncResult) error {
	switch {
	case res.Success:
		return nil
	case res.Action == cloudsync.ConflictDetected:
		return errConflict
	default:
		return errors.New(res.Message)
	}
}
