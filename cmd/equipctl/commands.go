package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/chemequip/internal/client"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prompt(&username, "Username"); err != nil {
				return err
			}
			if err := a.prompt(&password, "Password"); err != nil {
				return err
			}
			sess, err := client.New(a.server, a.clientOpts...).Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			if err := client.SaveSession(a.sessionPath, sess); err != nil {
				return err
			}
			a.success("Registered and logged in as %s", sess.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prompt(&username, "Username"); err != nil {
				return err
			}
			if err := a.prompt(&password, "Password"); err != nil {
				return err
			}
			sess, err := client.New(a.server, a.clientOpts...).Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := client.SaveSession(a.sessionPath, sess); err != nil {
				return err
			}
			a.success("Logged in as %s", sess.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := client.LoadSession(a.sessionPath, a.server, a.clientOpts...)
			if errors.Is(err, client.ErrNotAuthenticated) {
				a.info("Not logged in")
				return nil
			}
			if err != nil {
				return err
			}
			// A token the server already forgot still gets removed locally.
			if err := sess.Logout(cmd.Context()); err != nil && !client.IsUnauthorized(err) {
				return err
			}
			if err := client.RemoveSession(a.sessionPath); err != nil {
				return err
			}
			a.success("Logged out")
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE.csv",
		Short: "Upload a CSV of equipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			res, err := sess.UploadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.success("%s: %d records stored (upload %s)", res.Upload.Filename, res.EquipmentCount, res.Upload.ID)
			if skipped := res.Stats.Dropped + res.Stats.Malformed; skipped > 0 {
				a.warn("%d rows skipped (%d incomplete, %d malformed)", skipped, res.Stats.Dropped, res.Stats.Malformed)
			}
			if len(res.Pruned) > 0 {
				a.info("%d older uploads removed", len(res.Pruned))
			}
			return nil
		},
	}
}

func newDataCmd(a *app) *cobra.Command {
	var uploadID string
	cmd := &cobra.Command{
		Use:   "data",
		Short: "List equipment of the latest (or a given) upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			items, err := sess.Equipment(cmd.Context(), uploadID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				a.info("No equipment data; upload a CSV first")
				return nil
			}
			return printEquipment(a.stdout, items)
		},
	}
	cmd.Flags().StringVar(&uploadID, "upload-id", "", "upload to show (default: latest)")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var uploadID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show summary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			summary, err := sess.Summary(cmd.Context(), uploadID)
			if err != nil {
				return err
			}
			return printSummary(a.stdout, summary)
		},
	}
	cmd.Flags().StringVar(&uploadID, "upload-id", "", "upload to summarise (default: latest)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var detail string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if detail != "" {
				d, err := sess.UploadDetail(cmd.Context(), detail)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s  %s  %d records\n", d.ID, d.Filename, d.RecordCount)
				return printEquipment(a.stdout, d.Equipment)
			}
			uploads, err := sess.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(uploads) == 0 {
				a.info("No uploads yet")
				return nil
			}
			return printHistory(a.stdout, uploads)
		},
	}
	cmd.Flags().StringVar(&detail, "show", "", "show one upload with its equipment")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var uploadID, output string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the PDF report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			f, err := os.CreateTemp(filepath.Dir(output), ".report-*.pdf")
			if err != nil {
				return err
			}
			defer os.Remove(f.Name())

			n, err := sess.Report(cmd.Context(), uploadID, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(f.Name(), output); err != nil {
				return err
			}
			a.success("Saved %s (%d bytes)", output, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&uploadID, "upload-id", "", "upload to report on (default: latest)")
	cmd.Flags().StringVarP(&output, "output", "o", "equipment_report.pdf", "output file")
	return cmd
}

// prompt reads a line from stdin into *v when it is empty.
func (a *app) prompt(v *string, label string) error {
	if *v != "" {
		return nil
	}
	if a.reader == nil {
		a.reader = bufio.NewReader(a.stdin)
	}
	fmt.Fprintf(a.stderr, "%s: ", label)
	line, err := a.reader.ReadString('\n')
	*v = strings.TrimSpace(line)
	if *v == "" {
		if err != nil {
			return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return nil
}
