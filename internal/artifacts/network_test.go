package artifacts

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyNet builds a bias-free single-layer network for hand-checkable
// forward passes.
func tinyNet(kind OutputKind, outputWeight [][]float64) *Network {
	return &Network{
		InFeatures:   len(outputWeight[0]),
		OutFeatures:  len(outputWeight),
		Output:       kind,
		OutputWeight: outputWeight,
	}
}

func TestPredictSurvivalPMF(t *testing.T) {
	// Zero logits give a uniform event-time distribution over 3 cuts.
	n := tinyNet(OutputPMF, [][]float64{{0, 0}, {0, 0}, {0, 0}})

	surv, err := n.PredictSurvival([]float64{1, -1})
	require.NoError(t, err)
	require.Len(t, surv, 3)
	assert.InDelta(t, 2.0/3.0, surv[0], 1e-12)
	assert.InDelta(t, 1.0/3.0, surv[1], 1e-12)
	assert.InDelta(t, 0.0, surv[2], 1e-12)
}

func TestPredictSurvivalPMFWeighted(t *testing.T) {
	// logits = [x0, 0, 0]; with x0 = ln 2 the softmax is [1/2, 1/4, 1/4].
	n := tinyNet(OutputPMF, [][]float64{{1, 0}, {0, 0}, {0, 0}})

	surv, err := n.PredictSurvival([]float64{math.Log(2), 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, surv[0], 1e-12)
	assert.InDelta(t, 0.25, surv[1], 1e-12)
	assert.InDelta(t, 0.0, surv[2], 1e-12)
}

func TestPredictSurvivalHazard(t *testing.T) {
	// Zero logits give hazard 1/2 per interval: survival halves each cut.
	n := tinyNet(OutputHazard, [][]float64{{0}, {0}, {0}})

	surv, err := n.PredictSurvival([]float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, surv[0], 1e-12)
	assert.InDelta(t, 0.25, surv[1], 1e-12)
	assert.InDelta(t, 0.125, surv[2], 1e-12)
}

func TestPredictSurvivalNonIncreasing(t *testing.T) {
	nets := []*Network{
		tinyNet(OutputPMF, [][]float64{{0.3, -1}, {2, 0.5}, {-0.7, 1.1}, {0.1, 0.1}}),
		tinyNet(OutputHazard, [][]float64{{0.3, -1}, {2, 0.5}, {-0.7, 1.1}, {0.1, 0.1}}),
	}
	for _, n := range nets {
		surv, err := n.PredictSurvival([]float64{0.8, -0.4})
		require.NoError(t, err)
		for i, p := range surv {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			if i > 0 {
				assert.LessOrEqual(t, p, surv[i-1])
			}
		}
	}
}

func TestForwardHiddenLayer(t *testing.T) {
	// One hidden block: linear, ReLU, then batch norm scaling by 2 with
	// unit shift. x=[0.3,2] -> pre-activation [-0.2,2] -> ReLU [0,2]
	// -> batch norm [1,5] -> output logit 6.
	n := &Network{
		InFeatures:  2,
		OutFeatures: 1,
		Output:      OutputHazard,
		Hidden: []HiddenLayer{{
			Weight: [][]float64{{1, 0}, {0, 1}},
			Bias:   []float64{-0.5, 0},
			BNorm: &BatchNorm{
				Gamma: []float64{2, 2},
				Beta:  []float64{1, 1},
				Mean:  []float64{0, 0},
				Var:   []float64{1, 1},
			},
		}},
		OutputWeight: [][]float64{{1, 1}},
	}

	surv, err := n.PredictSurvival([]float64{0.3, 2})
	require.NoError(t, err)
	require.Len(t, surv, 1)

	want := 1.0 - 1.0/(1.0+math.Exp(-6))
	assert.InDelta(t, want, surv[0], 1e-12)
}

func TestPredictSurvivalInputWidth(t *testing.T) {
	n := tinyNet(OutputPMF, [][]float64{{0, 0}})

	_, err := n.PredictSurvival([]float64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 features")
}

func TestNetworkValidate(t *testing.T) {
	tests := []struct {
		name string
		net  Network
	}{
		{
			"unknown output kind",
			Network{InFeatures: 1, OutFeatures: 1, Output: "logits", OutputWeight: [][]float64{{0}}},
		},
		{
			"hidden row width mismatch",
			Network{
				InFeatures: 2, OutFeatures: 1, Output: OutputPMF,
				Hidden:       []HiddenLayer{{Weight: [][]float64{{1, 2, 3}}, Bias: []float64{0}}},
				OutputWeight: [][]float64{{0}},
			},
		},
		{
			"bias length mismatch",
			Network{
				InFeatures: 2, OutFeatures: 1, Output: OutputPMF,
				Hidden:       []HiddenLayer{{Weight: [][]float64{{1, 2}}, Bias: []float64{0, 0}}},
				OutputWeight: [][]float64{{0}},
			},
		},
		{
			"batch norm length mismatch",
			Network{
				InFeatures: 2, OutFeatures: 1, Output: OutputPMF,
				Hidden: []HiddenLayer{{
					Weight: [][]float64{{1, 2}},
					Bias:   []float64{0},
					BNorm:  &BatchNorm{Gamma: []float64{1, 1}, Beta: []float64{0}, Mean: []float64{0}, Var: []float64{1}},
				}},
				OutputWeight: [][]float64{{0}},
			},
		},
		{
			"output row count mismatch",
			Network{InFeatures: 1, OutFeatures: 2, Output: OutputPMF, OutputWeight: [][]float64{{0}}},
		},
		{
			"output row width mismatch",
			Network{InFeatures: 2, OutFeatures: 1, Output: OutputPMF, OutputWeight: [][]float64{{0}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.net.validate())
		})
	}
}
