// Command equipctl is the command-line companion to the equipment API.
//
// A successful register or login stores the session token in a file so
// later commands run as that user until logout.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/chemequip/internal/client"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries the command dependencies so tests can swap them.
type app struct {
	server      string
	sessionPath string
	stdin       io.Reader
	reader      *bufio.Reader // wraps stdin once prompting starts
	stdout      io.Writer
	stderr      io.Writer
	clientOpts  []client.Option
}

func main() {
	// Optional; EQUIPCTL_SERVER and EQUIPCTL_SESSION may come from .env.
	_ = godotenv.Load()

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		color.New(color.FgHiRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "equipctl",
		Short:         "equipctl - chemical equipment upload client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolveDefaults()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.server, "server", os.Getenv("EQUIPCTL_SERVER"),
		"API server URL (env EQUIPCTL_SERVER, default "+client.DefaultBaseURL+")")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", os.Getenv("EQUIPCTL_SESSION"),
		"session file (env EQUIPCTL_SESSION)")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newUploadCmd(a),
		newDataCmd(a),
		newSummaryCmd(a),
		newHistoryCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) resolveDefaults() error {
	if a.sessionPath != "" {
		return nil
	}
	path, err := client.DefaultSessionPath()
	if err != nil {
		return fmt.Errorf("no --session given: %w", err)
	}
	a.sessionPath = path
	return nil
}

// session loads the saved session or explains how to get one.
func (a *app) session() (*client.Session, error) {
	sess, err := client.LoadSession(a.sessionPath, a.server, a.clientOpts...)
	if err != nil {
		if errors.Is(err, client.ErrNotAuthenticated) {
			return nil, fmt.Errorf("not logged in; run 'equipctl login' first")
		}
		return nil, err
	}
	return sess, nil
}
