package logsink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_AppendWritesPerSourceFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	ts := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Append("scanai", []Record{
		{Level: "INFO", Message: "camera started", Timestamp: ts},
		{Level: "ERROR", Message: "frame dropped", Timestamp: ts.Add(time.Second)},
	}))
	require.NoError(t, s.Append("posai", []Record{
		{Level: "WARN", Message: "slow checkout", Timestamp: ts},
	}))

	scanai, err := os.ReadFile(filepath.Join(dir, "scanai.log"))
	require.NoError(t, err)
	assert.Equal(t,
		"[2026-08-24T10:30:00Z] [INFO] camera started\n"+
			"[2026-08-24T10:30:01Z] [ERROR] frame dropped\n",
		string(scanai))

	posai, err := os.ReadFile(filepath.Join(dir, "posai.log"))
	require.NoError(t, err)
	assert.Equal(t, "[2026-08-24T10:30:00Z] [WARN] slow checkout\n", string(posai))
}

func TestSink_UnknownSourceDiscardedWithoutError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("rogue", []Record{{Level: "INFO", Message: "hi"}}))

	_, err = os.Stat(filepath.Join(dir, "rogue.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestSink_ZeroTimestampFallsBackToNow(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "custom")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("custom", []Record{{Level: "INFO", Message: "no ts"}}))

	data, err := os.ReadFile(filepath.Join(dir, "custom.log"))
	require.NoError(t, err)
	year := time.Now().UTC().Format("2006")
	assert.Contains(t, string(data), "["+year)
	assert.Contains(t, string(data), "[INFO] no ts\n")
}

func TestSink_AppendsAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "custom")
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append("custom", []Record{{Level: "INFO", Message: "line"}}))
	}

	data, err := os.ReadFile(filepath.Join(dir, "custom.log"))
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))
}
