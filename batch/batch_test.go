package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	testdataloader "github.com/peteole/testdata-loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgkey/config"
	"github.com/chaos-io/bgkey/keyer"
)

func setupDir(t *testing.T) (in, out string) {
	t.Helper()
	root := t.TempDir()
	in = filepath.Join(root, "in")
	out = filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(in, "sub"), os.ModePerm))

	logo := testdataloader.GetTestFile("testdata/logo_black.png")
	require.NoError(t, os.WriteFile(filepath.Join(in, "logo.png"), logo, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "LOGO2.PNG"), logo, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.jpg"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip me"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "sub", "nested.png"), logo, 0o644))
	return in, out
}

func TestScanDir(t *testing.T) {
	in, _ := setupDir(t)

	files, err := scanDir(in, []string{"png", ".jpg"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(in, "logo.png"),
		filepath.Join(in, "LOGO2.PNG"),
		filepath.Join(in, "broken.jpg"),
	}, files)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "logo.png", outputName("src/assets/logo.jpg"))
	assert.Equal(t, "frame.001.png", outputName("frame.001.webp"))
}

func TestRunner_RunOnce(t *testing.T) {
	in, out := setupDir(t)

	cfg := config.Default()
	cfg.Batch.InputDir, cfg.Batch.OutputDir = in, out
	r := NewRunner(cfg)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Positive(t, report.Bytes)

	assert.FileExists(t, filepath.Join(out, "logo.png"))
	assert.FileExists(t, filepath.Join(out, "LOGO2.png"))
	assert.NoFileExists(t, filepath.Join(out, "broken.png"))
	assert.NoFileExists(t, filepath.Join(out, "nested.png"))
}

func TestRunner_RunOnce_MissingDir(t *testing.T) {
	r := &Runner{In: filepath.Join(t.TempDir(), "nope"), Options: keyer.DefaultOptions()}
	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_RunOnce_SameDir(t *testing.T) {
	in, _ := setupDir(t)
	r := &Runner{In: in, Out: in + string(filepath.Separator), Extensions: []string{"png"}, Options: keyer.DefaultOptions()}

	report, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ from input dir")
	assert.Zero(t, report.Processed)

	entries, err := os.ReadDir(in)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRunner_RunOnce_Canceled(t *testing.T) {
	in, out := setupDir(t)
	r := &Runner{In: in, Out: out, Extensions: []string{"png"}, Options: keyer.DefaultOptions()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := r.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Processed)
}

func TestRunner_Schedule(t *testing.T) {
	in, out := setupDir(t)
	r := &Runner{In: in, Out: out, Extensions: []string{"png"}, Options: keyer.DefaultOptions()}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	var done atomic.Bool
	go func() {
		_ = r.Schedule(ctx, "@every 1s")
		done.Store(true)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "logo.png"))
		return err == nil
	}, 2*time.Second, 50*time.Millisecond)

	assert.Eventually(t, done.Load, 3*time.Second, 50*time.Millisecond)
}

func TestRunner_Schedule_BadSpec(t *testing.T) {
	r := &Runner{}
	err := r.Schedule(context.Background(), "not a schedule")
	assert.Error(t, err)
}
