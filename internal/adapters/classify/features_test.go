package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvdai/suriwatch/internal/domain"
)

const fallbackIP = "10.81.50.100"

func staticFallback() string { return fallbackIP }

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFlows(t *testing.T) {
	path := writeCSV(t, "src_ip,src_port,dst_port,flow_byts_s\n"+
		"192.168.1.5,4444,80,120.5\n"+
		"192.168.1.6,5555,443,0.25\n")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "192.168.1.5", rows[0].SrcIP)
	assert.Len(t, rows[0].Features, len(domain.FeatureColumns))
	assert.Equal(t, 4444.0, rows[0].Features[0])
	assert.Equal(t, 80.0, rows[0].Features[1])
	assert.Equal(t, 120.5, rows[0].Features[2])
}

func TestLoadFlowsZeroFillsMissingColumns(t *testing.T) {
	path := writeCSV(t, "src_ip,src_port\n192.168.1.5,4444\n")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, 4444.0, rows[0].Features[0])
	for i := 1; i < len(rows[0].Features); i++ {
		assert.Zero(t, rows[0].Features[i])
	}
}

func TestLoadFlowsFallbackSource(t *testing.T) {
	path := writeCSV(t, "src_ip,src_port\n"+
		"0.0.0.0,1\n"+
		",2\n"+
		"192.168.1.9,3\n")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, fallbackIP, rows[0].SrcIP)
	assert.Equal(t, fallbackIP, rows[1].SrcIP)
	assert.Equal(t, "192.168.1.9", rows[2].SrcIP)
}

func TestLoadFlowsNoSourceColumn(t *testing.T) {
	path := writeCSV(t, "src_port\n4444\n")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fallbackIP, rows[0].SrcIP)
}

func TestLoadFlowsUnparsableValuesAreZero(t *testing.T) {
	path := writeCSV(t, "src_ip,src_port,dst_port\n192.168.1.5,not-a-number,80\n")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].Features[0])
	assert.Equal(t, 80.0, rows[0].Features[1])
}

func TestLoadFlowsEmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	rows, err := NewLoader(staticFallback)(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadFlowsMissingFile(t *testing.T) {
	_, err := NewLoader(staticFallback)(filepath.Join(t.TempDir(), "ghost.csv"))
	assert.Error(t, err)
}

func TestLoaderReadsLiveFallback(t *testing.T) {
	path := writeCSV(t, "src_ip,src_port\n0.0.0.0,1\n")

	current := "10.0.0.1"
	loader := NewLoader(func() string { return current })

	rows, err := loader(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10.0.0.1", rows[0].SrcIP)

	// A reconfigured fallback applies to the next load, not just new loaders.
	current = "10.0.0.2"
	rows, err = loader(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10.0.0.2", rows[0].SrcIP)
}
