package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncProcessSpawn("Pdflatex")
	pr.ObserveProcessDuration("Pdflatex", 150*time.Millisecond)
	pr.IncBuilderResult("Pdflatex", ResultSuccess)
	pr.SetProcessesInFlight(2)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome("done")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["dmbuild_process_spawns_total"])
	require.True(t, names["dmbuild_processes_in_flight"])
	require.True(t, names["dmbuild_build_outcomes_total"])
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncProcessSpawn("x")
	pr.ObserveBuildDuration(time.Second)
	pr.IncBuildOutcome("done")
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncProcessSpawn("Copy")

	path := filepath.Join(t.TempDir(), "dmbuild.prom")
	require.NoError(t, WriteTextfile(reg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `dmbuild_process_spawns_total{builder="Copy"} 1`)
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
