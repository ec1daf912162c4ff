package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

func TestInitMigratesAndDumpsOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "recording.db")

	b, err := New(Config{DumpInterval: time.Hour, DumpPath: dump}, cache.NewLaunchCache(), logging.NewManager())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.True(t, b.db.Migrator().HasTable("launches"))
	require.True(t, b.db.Migrator().HasTable("sample_states"))

	require.NoError(t, b.Close())

	info, err := os.Stat(dump)
	require.NoError(t, err, "Close should leave a final dump behind")
	assert.Greater(t, info.Size(), int64(0))
}

func TestCloseWithoutDumpPath(t *testing.T) {
	b, err := New(Config{}, cache.NewLaunchCache(), logging.NewManager())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
}
