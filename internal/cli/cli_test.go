package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/config"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/rex/rextest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *rextest.Server
	config *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := rextest.NewServer(t)
	c := &config.Config{}
	c.LoadDefaults()
	c.RexBaseURL = srv.BaseURL()
	c.RexUsername = rextest.Username
	c.RexPassword = rextest.Password
	c.RequestsPerSecond = 0
	c.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "cli.db") + "?_pragma=busy_timeout(5000)"
	require.NoError(t, c.Validate())
	return &fixture{srv: srv, config: c}
}

// run executes one command and returns what it printed.
func (f *fixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, prompt bytes.Buffer
	c := New(f.config, logging.Nop(), strings.NewReader(stdin), &out, &prompt)
	err := c.Run(context.Background(), args)
	return out.String(), err
}

func decodeViews(t *testing.T, out string) []models.ListingView {
	t.Helper()
	var got []models.ListingView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	return got
}

func TestRun_Usage(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "")
	require.ErrorIs(t, err, ErrUsage)

	_, err = f.run(t, "", "frobnicate")
	require.ErrorIs(t, err, ErrUsage)

	out, err := f.run(t, "", "help")
	require.NoError(t, err)
	assert.Contains(t, out, "recent [--sold]")

	out, err = f.run(t, "", "sync", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--full")

	_, err = f.run(t, "", "sync", "--limit", "many")
	require.ErrorIs(t, err, ErrUsage)
}

func TestSyncThenList(t *testing.T) {
	f := newFixture(t)
	f.srv.SetRows(
		rextest.Row(1, models.StatusCurrent, 1700000000),
		rextest.Row(2, models.StatusSold, 0),
	)

	out, err := f.run(t, "", "sync", "--full")
	require.NoError(t, err)
	assert.Len(t, decodeViews(t, out), 2)

	out, err = f.run(t, "", "list", "--status", models.StatusSold)
	require.NoError(t, err)
	got := decodeViews(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ExternalID)

	out, err = f.run(t, "", "recent", "-n", "1")
	require.NoError(t, err)
	got = decodeViews(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ExternalID)

	// The token from the first run is reused.
	assert.Equal(t, 1, f.srv.Calls("login"))
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	f.srv.SetRows(rextest.Row(77, models.StatusCurrent, 0))

	out, err := f.run(t, "", "get", "77")
	require.NoError(t, err)
	var v models.ListingView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, int64(77), v.ExternalID)

	_, err = f.run(t, "", "get", "78")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.run(t, "", "get", "abc")
	require.ErrorIs(t, err, ErrUsage)

	_, err = f.run(t, "", "get")
	require.ErrorIs(t, err, ErrUsage)
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"listings": 0`)
	assert.Contains(t, out, `"due": true`)
}

func TestLogin_PromptsForMissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.config.RexUsername = ""
	f.config.RexPassword = ""

	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte(rextest.Password), nil }

	out, err := f.run(t, rextest.Username+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in")
	assert.Equal(t, 1, f.srv.Calls("login"))

	out, err = f.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.config.RexPassword = ""

	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte("nope"), nil }

	_, err := f.run(t, "", "login")
	require.Error(t, err)
}

func TestLogin_PasswordReadFails(t *testing.T) {
	f := newFixture(t)
	f.config.RexPassword = ""

	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	boom := errors.New("not a terminal")
	readPassword = func(int) ([]byte, error) { return nil, boom }

	_, err := f.run(t, "", "login")
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.srv.Calls("login"))
}
