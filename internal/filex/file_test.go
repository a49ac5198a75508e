package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesMissingDirs(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data", "db", "rexsync.db")

	require.NoError(t, EnsureParentDir(path))

	fi, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureParentDir_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rexsync.db")

	require.NoError(t, EnsureParentDir(path))
	require.NoError(t, EnsureParentDir(path))
}

func TestEnsureParentDir_BareFileName(t *testing.T) {
	require.NoError(t, EnsureParentDir("rexsync.db"))
}

func TestEnsureParentDir_ParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := EnsureParentDir(filepath.Join(blocker, "sub", "rexsync.db"))
	require.Error(t, err)
}

func TestSQLitePath(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"file:rexsync.db?_pragma=busy_timeout(5000)", "rexsync.db"},
		{"file:data/rexsync.db", "data/rexsync.db"},
		{"/var/lib/rexsync/rexsync.db", "/var/lib/rexsync/rexsync.db"},
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
		{"file:test.db?mode=memory&cache=shared", ""},
	}
	for _, tc := range cases {
		t.Run(tc.dsn, func(t *testing.T) {
			require.Equal(t, tc.want, SQLitePath(tc.dsn))
		})
	}
}
