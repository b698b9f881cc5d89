package datamine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	const payload = "item,inv\napples,1\nbananas,2\n"

	t.Run("with header", func(t *testing.T) {
		session := newStreamSession(payload)
		filename := filepath.Join(t.TempDir(), "out.csv")

		require.NoError(t, session.Download(filename, true))

		content, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "ITEM,INV\napples,1\nbananas,2\n", string(content))
	})

	t.Run("without header", func(t *testing.T) {
		session := newStreamSession(payload)
		filename := filepath.Join(t.TempDir(), "out.csv")

		require.NoError(t, session.Download(filename, false))

		content, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "apples,1\nbananas,2\n", string(content))
	})

	t.Run("resumes after partial fetch", func(t *testing.T) {
		session := newStreamSession(payload)

		row, err := session.FetchOne()
		require.NoError(t, err)
		assert.Equal(t, "apples", row["ITEM"])

		filename := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, session.Download(filename, true))

		content, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "ITEM,INV\nbananas,2\n", string(content))
	})

	t.Run("fields with commas are quoted", func(t *testing.T) {
		session := newStreamSession("name,note\nwidget,red\\, round\n")
		filename := filepath.Join(t.TempDir(), "out.csv")

		require.NoError(t, session.Download(filename, false))

		content, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "widget,\"red, round\"\n", string(content))
	})

	t.Run("missing directory", func(t *testing.T) {
		session := newStreamSession(payload)
		filename := filepath.Join(t.TempDir(), "missing", "out.csv")

		err := session.Download(filename, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a valid directory")

		_, statErr := os.Stat(filename)
		assert.True(t, os.IsNotExist(statErr), "no partial file should be left behind")
	})

	t.Run("non-writable directory", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("write permission checks do not apply to root")
		}

		dir := filepath.Join(t.TempDir(), "readonly")
		require.NoError(t, os.Mkdir(dir, 0o555))

		session := newStreamSession(payload)
		err := session.Download(filepath.Join(dir, "out.csv"), true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a writable directory")
	})

	t.Run("non-writable existing file", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("write permission checks do not apply to root")
		}

		filename := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, os.WriteFile(filename, []byte("locked"), 0o444))

		session := newStreamSession(payload)
		err := session.Download(filename, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a writable file")
	})

	t.Run("no result stream", func(t *testing.T) {
		session := &Session{state: StateIdle}
		err := session.Download(filepath.Join(t.TempDir(), "out.csv"), true)
		assert.ErrorIs(t, err, ErrNoResult)
	})
}
