package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/chemequip/internal/config"
	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/JonMunkholm/chemequip/internal/store/memory"
	"github.com/JonMunkholm/chemequip/internal/web"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
	"Pump-1,Pump,120,5.2,110\n" +
	"Valve-1,Valve,60,4.1,105\n" +
	"Broken,Pump,,1,1\n"

type harness struct {
	server  string
	session string
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true

	cfg := config.Defaults()
	cfg.Database.URL = "postgres://unused"
	cfg.Rate.Enabled = false
	cfg.Security.BcryptCost = 4

	svc, err := core.NewService(memory.New(), cfg)
	require.NoError(t, err)
	srv := web.NewServer(svc, cfg, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
	})

	dir := t.TempDir()
	return &harness{server: ts.URL, session: filepath.Join(dir, "session.json"), dir: dir}
}

// run executes one equipctl invocation and returns stdout and stderr.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--server", h.server, "--session", h.session}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "register", "-u", "alice", "-e", "alice@example.com", "-p", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and logged in as alice")
	_, err = os.Stat(h.session)
	require.NoError(t, err)

	csvPath := filepath.Join(h.dir, "plant.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	out, errOut, err := h.run(t, "", "upload", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "plant.csv: 2 records stored")
	assert.Contains(t, errOut, "1 rows skipped (1 incomplete, 0 malformed)")

	out, _, err = h.run(t, "", "data")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Pump-1")
	assert.Contains(t, out, "120.00")
	assert.Less(t, strings.Index(out, "Pump-1"), strings.Index(out, "Valve-1"))

	out, _, err = h.run(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total equipment: 2")
	assert.Contains(t, out, "Flowrate")
	assert.Contains(t, out, "90.00")

	out, _, err = h.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "plant.csv")

	pdfPath := filepath.Join(h.dir, "out.pdf")
	out, _, err = h.run(t, "", "report", "-o", pdfPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved")
	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	out, _, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	_, err = os.Stat(h.session)
	assert.True(t, os.IsNotExist(err))

	_, _, err = h.run(t, "", "data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLoginPrompts(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "register", "-u", "bob", "-p", "secret123")
	require.NoError(t, err)

	out, errOut, err := h.run(t, "bob\nsecret123\n", "login")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Username: ")
	assert.Contains(t, errOut, "Password: ")
	assert.Contains(t, out, "Logged in as bob")
}

func TestLoginBadPassword(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "register", "-u", "bob", "-p", "secret123")
	require.NoError(t, err)

	_, _, err = h.run(t, "", "login", "-u", "bob", "-p", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH001")
}

func TestPromptRequiresValue(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "\n", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
}

func TestUploadRejectsMissingColumns(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "register", "-u", "carol", "-p", "secret123")
	require.NoError(t, err)

	path := filepath.Join(h.dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Equipment Name,Type\nPump-1,Pump\n"), 0o644))

	_, _, err = h.run(t, "", "upload", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VAL004")
}

func TestEmptyState(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "register", "-u", "dave", "-p", "secret123")
	require.NoError(t, err)

	out, _, err := h.run(t, "", "data")
	require.NoError(t, err)
	assert.Contains(t, out, "No equipment data")

	out, _, err = h.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No uploads yet")

	out, _, err = h.run(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total equipment: 0")

	_, _, err = h.run(t, "", "report", "-o", filepath.Join(h.dir, "r.pdf"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(h.dir, "r.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestPrintSummaryLabels(t *testing.T) {
	var buf bytes.Buffer
	err := printSummary(&buf, core.SummaryStatistics{
		TotalCount:       3,
		TypeDistribution: map[string]int{"HeatExchanger": 2, "Mixer": 1},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Total equipment: 3")
	assert.Contains(t, out, "Heat Exchanger")
	assert.Contains(t, out, "Mixer")
	assert.NotContains(t, out, "HeatExchanger")
}
