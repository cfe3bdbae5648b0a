package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/testutil"
)

const demoPipeline = `
pipeline "demo" {
  node "gen" {
    kind    = "generator"
    params  = { count = 10 }
    push_to = ["sorter"]
  }

  node "sorter" {
    kind             = "buffer"
    buffered_push_to = ["rep"]
  }

  node "rep" {
    kind    = "replay"
    params  = { from = "sorter" }
    push_to = ["out"]
  }

  node "out" {
    kind = "collect"
  }
}
`

// writePipeline drops pipeline file contents into a fresh temp dir and
// returns the file path.
func writePipeline(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func newTestApp(t *testing.T, buf *testutil.SafeBuffer, cfg Config) *App {
	t.Helper()
	cfg.LogFormat = "text"
	cfg.LogLevel = "debug"
	if cfg.MemoryBudget == 0 {
		cfg.MemoryBudget = 1 << 20
	}
	validated, err := NewConfig(cfg)
	require.NoError(t, err)
	return NewApp(buf, validated)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig(Config{MemoryBudget: 1})
	assert.Error(t, err)

	_, err = NewConfig(Config{PipelinePath: "p.hcl"})
	assert.Error(t, err)

	cfg, err := NewConfig(Config{PipelinePath: "p.hcl", MemoryBudget: 1})
	require.NoError(t, err)
	assert.Equal(t, "p.hcl", cfg.PipelinePath)
}

func TestAppRunsPipelineFile(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	path := writePipeline(t, demoPipeline)

	a := newTestApp(t, buf, Config{PipelinePath: path})
	require.NoError(t, a.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Pipeline finished.")
	assert.Contains(t, out, "Result collected.")
	assert.Contains(t, out, "items=10")
}

func TestAppRunsDirectory(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	path := writePipeline(t, demoPipeline)

	a := newTestApp(t, buf, Config{PipelinePath: filepath.Dir(path)})
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, buf.String(), "Pipeline finished.")
}

func TestAppEmptyDirectoryWarns(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	a := newTestApp(t, buf, Config{PipelinePath: t.TempDir()})
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, buf.String(), "No pipeline files found")
}

func TestAppMissingPath(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	a := newTestApp(t, buf, Config{PipelinePath: "/does/not/exist"})
	assert.Error(t, a.Run(context.Background()))
}

func TestAppPlotOnly(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	path := writePipeline(t, demoPipeline)

	a := newTestApp(t, buf, Config{PipelinePath: path, PlotOnly: true})
	require.NoError(t, a.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "digraph pipeline")
	assert.Contains(t, out, `"sorter"`)
	assert.NotContains(t, out, "Pipeline finished.")
}

func TestAppMetrics(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	path := writePipeline(t, demoPipeline)

	a := newTestApp(t, buf, Config{PipelinePath: path, Metrics: true})
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, buf.String(), "pipegrid_steps_total")
}

func TestAppSurfacesPlanningErrors(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	path := writePipeline(t, `
pipeline "broken" {
  node "a" {
    kind       = "collect"
    depends_on = ["b"]
  }
  node "b" {
    kind       = "collect"
    depends_on = ["a"]
  }
}
`)

	a := newTestApp(t, buf, Config{PipelinePath: path})
	err := a.Run(context.Background())
	assert.ErrorContains(t, err, `pipeline "broken"`)
}
