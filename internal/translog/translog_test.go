package translog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otiza/ZkConnectSolution/internal/device"
)

var testEvent = device.AttendanceEvent{
	DeviceUserID: 21,
	Timestamp:    "2021-02-17 18:23:00",
}

func chtmp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestFileName(t *testing.T) {
	day := time.Date(2021, 2, 17, 18, 23, 0, 0, time.UTC)
	assert.Equal(t, "transactions.log", FileName("transactions", false, day))
	assert.Equal(t, "transactions-2021-02-17.log", FileName("transactions", true, day))
	assert.Equal(t, "punches-2021-02-17.log", FileName("punches", true, day))
}

func TestOneLinePerEvent(t *testing.T) {
	dir := chtmp(t)

	l := Open("transactions", false)
	l.Forwarded(testEvent, 200)
	l.Dropped(testEvent, errors.New("endpoint returned status 500"))
	l.Received(testEvent)
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, "transactions.log"))
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "forwarded")
	assert.Contains(t, lines[0], "status=200")
	assert.Contains(t, lines[0], "user_id=21")
	assert.Contains(t, lines[0], "timestamp=2021-02-17 18:23:00")

	assert.Contains(t, lines[1], "dropped")
	assert.Contains(t, lines[1], "endpoint returned status 500")

	assert.Contains(t, lines[2], "received")
}

func TestFaultLine(t *testing.T) {
	dir := chtmp(t)

	l := Open("transactions", false)
	l.Fault("connect", errors.New("failed to connect to terminal 10.0.0.9:4370"))
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, "transactions.log"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "fatal")
	assert.Contains(t, lines[0], "stage=connect")
	assert.Contains(t, lines[0], "10.0.0.9:4370")
}

func TestAppendsAcrossOpens(t *testing.T) {
	dir := chtmp(t)

	l := Open("transactions", false)
	l.Forwarded(testEvent, 200)
	require.NoError(t, l.Close())

	l = Open("transactions", false)
	l.Forwarded(testEvent, 200)
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, "transactions.log"))
	assert.Len(t, lines, 2)
}

func TestOpenFailureFallsBackToDiscard(t *testing.T) {
	chtmp(t)

	// a directory with the target name makes the open fail
	require.NoError(t, os.Mkdir("transactions.log", 0o755))

	l := Open("transactions", false)
	l.Forwarded(testEvent, 200) // must not panic
	l.Fault("stream", errors.New("gone"))
	assert.NoError(t, l.Close())
}

func TestSplitFileCarriesDate(t *testing.T) {
	dir := chtmp(t)

	l := Open("transactions", true)
	l.Forwarded(testEvent, 200)
	require.NoError(t, l.Close())

	want := FileName("transactions", true, time.Now())
	_, err := os.Stat(filepath.Join(dir, want))
	assert.NoError(t, err)
}
