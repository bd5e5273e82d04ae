package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/chunkstream/sim/scenario"
)

// setFlags sets run flags as if given on the command line and restores
// every flag when the test ends.
func setFlags(t *testing.T, values map[string]string) {
	t.Helper()
	t.Cleanup(func() {
		runCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
	for name, v := range values {
		require.NoError(t, runCmd.Flags().Set(name, v), name)
	}
}

const pushScenario = `
seed: 3
horizon: 0.002
topology: push
link:
  datarate_bps: 100000000
sources:
  - name: bulk
    class: preemptable
    rate: 1000
    arrival:
      process: poisson
    length:
      type: imix
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_UnchangedFlagsKeepFileValues(t *testing.T) {
	// GIVEN a scenario file and no overriding flags
	setFlags(t, map[string]string{"config": writeScenario(t, pushScenario)})

	// WHEN it is loaded
	cfg, err := loadScenario(runCmd)
	require.NoError(t, err)

	// THEN the file's values survive even where flag defaults differ
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Equal(t, 0.002, cfg.Horizon)
	assert.Equal(t, int64(100_000_000), cfg.Link.Datarate)
	assert.Equal(t, scenario.TopologyPush, cfg.Topology)
	assert.Nil(t, cfg.Preemption)
}

func TestLoadScenario_ChangedFlagsOverrideFile(t *testing.T) {
	// GIVEN a scenario file and explicit flags
	setFlags(t, map[string]string{
		"config":      writeScenario(t, pushScenario),
		"seed":        "99",
		"horizon":     "0.5",
		"datarate":    "1000",
		"down-at":     "0.25",
		"trace-level": "streams",
	})

	// WHEN it is loaded
	cfg, err := loadScenario(runCmd)
	require.NoError(t, err)

	// THEN each flag replaces the file's value
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 0.5, cfg.Horizon)
	assert.Equal(t, int64(1000), cfg.Link.Datarate)
	assert.Equal(t, 0.25, cfg.Link.DownAt)
	assert.Equal(t, "streams", cfg.TraceLevel)
}

func TestLoadScenario_TopologySwitchAdjustsPreemption(t *testing.T) {
	t.Run("to push", func(t *testing.T) {
		setFlags(t, map[string]string{"topology": "push"})
		cfg, err := loadScenario(runCmd)
		require.NoError(t, err)
		assert.Nil(t, cfg.Preemption)
	})
	t.Run("to preemption", func(t *testing.T) {
		setFlags(t, map[string]string{"config": writeScenario(t, pushScenario), "topology": "preemption"})
		cfg, err := loadScenario(runCmd)
		require.NoError(t, err)
		assert.Equal(t, scenario.DefaultConfig().Preemption, cfg.Preemption)
	})
}

func TestLoadScenario_InvalidOverrideRejected(t *testing.T) {
	setFlags(t, map[string]string{"datarate": "0"})

	_, err := loadScenario(runCmd)

	assert.ErrorContains(t, err, "datarate_bps")
}

func TestLoadScenario_UnknownPreset(t *testing.T) {
	setFlags(t, map[string]string{"preset": "ring"})

	_, err := loadScenario(runCmd)

	assert.ErrorContains(t, err, "unknown preset")
}

func TestPrintResults_MetricsAndSummary(t *testing.T) {
	// GIVEN a traced run of the push preset
	cfg, err := presetScenario(presetPush)
	require.NoError(t, err)
	cfg.Horizon = 0.0005
	cfg.TraceLevel = "deliveries"
	res, err := scenario.Run(cfg)
	require.NoError(t, err)

	// WHEN the results are printed with the summary
	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, res, time.Millisecond, true))

	// THEN both JSON sections appear
	out := buf.String()
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, `"delivered_packets"`)
	assert.Contains(t, out, "=== Trace Summary ===")
	assert.Contains(t, out, `"DeliveredPackets"`)
}

func TestPrintResults_SummaryWithoutTrace(t *testing.T) {
	cfg, err := presetScenario(presetPreemption)
	require.NoError(t, err)
	cfg.Horizon = 0.0001
	res, err := scenario.Run(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, res, 0, true))

	assert.Contains(t, buf.String(), "tracing is disabled")
	assert.NotContains(t, buf.String(), "=== Trace Summary ===")
}

func TestWriteMetrics_PrometheusText(t *testing.T) {
	cfg, err := presetScenario(presetPreemption)
	require.NoError(t, err)
	cfg.Horizon = 0.001
	res, err := scenario.Run(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "metrics.prom")

	require.NoError(t, writeMetrics(path, res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE chunkstream_streams_started_total counter")
	assert.Contains(t, string(data), `chunkstream_queue_length{queue="express"}`)
}
