package stanout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainCSV = `# model = bernoulli_model
# method = sample (Default)
#   sample
#     num_samples = 3
#     num_warmup = 2
#     save_warmup = 1
lp__,accept_stat__,theta
-7.1,0.9,0.25
-6.9,1,0.3
# Adaptation terminated
# Step size = 0.93
-7.0,0.85,0.21
-6.8,0.99,0.27
-7.3,0.7,0.19
#
#  Elapsed Time: 0.004 seconds (Warm-up)
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(chainCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"lp__", "accept_stat__", "theta"}, c.SequenceNames)
	assert.Equal(t, []float64{0.25, 0.3, 0.21, 0.27, 0.19}, c.Sequences["theta"])
	assert.Equal(t, 2, c.NumWarmupDraws)
	assert.True(t, strings.HasPrefix(c.RawHeader, "# model = bernoulli_model\n"))
	assert.NotContains(t, c.RawHeader, "Adaptation")
	assert.Contains(t, c.RawFooter, "# Adaptation terminated")
	assert.Contains(t, c.RawFooter, "Elapsed Time")
}

func TestWarmupNotSaved(t *testing.T) {
	csv := strings.Replace(chainCSV, "save_warmup = 1", "save_warmup = 0 (Default)", 1)
	c, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, c.NumWarmupDraws)

	csv = strings.Replace(chainCSV, "save_warmup = 1", "save_warmup = true", 1)
	c, err = Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumWarmupDraws)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("# only comments\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("a,b\n1,2\n3\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("a,b\n1,x\n"))
	assert.Error(t, err)
}

func TestChainID(t *testing.T) {
	assert.Equal(t, "chain_1", ChainID("output/bernoulli-20240101_1.csv"))
	assert.Equal(t, "chain_12", ChainID("model-12.csv"))
	assert.Equal(t, "samples", ChainID("samples.csv"))
}

func TestParseOutputDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fit_2.csv"), []byte("x\n2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fit_1.csv"), []byte("x\n1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	chains, err := ParseOutputDir(dir)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, "chain_1", chains[0].ChainID)
	assert.Equal(t, []float64{1}, chains[0].Sequences["x"])
	assert.Equal(t, "chain_2", chains[1].ChainID)

	chains, err = ParseOutputDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, chains)
}
