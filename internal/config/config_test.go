package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	Keys = Config{Target: "xcp-metrics", LogLevel: "info", RingSizes: RingSizes{FiveSecond: 120, OneMinute: 120, OneHour: 168, OneDay: 365}}
	require.NoError(t, Init(filepath.Join(t.TempDir(), "missing.json")))
	require.Equal(t, "xcp-metrics", Keys.Target)
	require.Equal(t, "/var/lib/xcp/xcp-metrics", Keys.SocketPathFor())
}

func TestInitOverridesDefaults(t *testing.T) {
	Keys = Config{Target: "xcp-metrics", LogLevel: "info", RingSizes: RingSizes{FiveSecond: 120, OneMinute: 120, OneHour: 168, OneDay: 365}}
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"target":"xcp-metrics-plugin","loglevel":"debug"}`), 0o644))

	require.NoError(t, Init(fp))
	require.Equal(t, "xcp-metrics-plugin", Keys.Target)
	require.Equal(t, "debug", Keys.LogLevel)
	require.Equal(t, "/var/lib/xcp/xcp-metrics-plugin", Keys.SocketPathFor())
	require.Equal(t, 120, Keys.RingSizes.FiveSecond)
}

func TestInitRejectsUnknownFields(t *testing.T) {
	Keys = Config{Target: "xcp-metrics"}
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"bogus-field":true}`), 0o644))

	require.Error(t, Init(fp))
}

func TestInitRejectsInvalidLogLevel(t *testing.T) {
	Keys = Config{Target: "xcp-metrics"}
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"loglevel":"verbose"}`), 0o644))

	require.Error(t, Init(fp))
}
