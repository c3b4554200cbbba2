package service

import (
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/domain"
)

// Shared fixtures for the service tests: a minimal but fully consistent
// artifact store with identity preprocessing (zero centers, unit scales)
// and constant-output networks, so every pipeline stage is hand-checkable.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testFeatureNames puts the clinical columns first so their positions
// survive the k-best selection untouched.
func testFeatureNames() []string {
	names := []string{
		domain.FeatureAge,             // 0
		domain.FeatureRisk,            // 1
		domain.FeatureBMBP,            // 2
		domain.FeatureFLT3,            // 3
		domain.FeatureChemotherapy,    // 4
		domain.FeatureGender,          // 5
		domain.FeatureTransplant,      // 6
		domain.FeatureNPM1Alt,         // 7
		domain.FeatureCEBPA,           // 8
		domain.FeatureDNMT3A,          // 9
		domain.FeatureIDH1,            // 10
		domain.FeatureIDH2,            // 11
		domain.FeatureTargetedTherapy, // 12
	}
	for i := len(names); i < 80; i++ {
		names = append(names, fmt.Sprintf("Gene_%03d", i))
	}
	return names
}

// constNet builds a network whose logits do not depend on the input:
// zero weights everywhere, so raw curves are identical across patients
// and only the clinical adjustment differentiates them.
func constNet(kind artifacts.OutputKind, out int) *artifacts.Network {
	w := make([][]float64, out)
	for i := range w {
		w[i] = make([]float64, artifacts.SelectedFeatures)
	}
	return &artifacts.Network{
		InFeatures:   artifacts.SelectedFeatures,
		OutFeatures:  out,
		Output:       kind,
		OutputWeight: w,
	}
}

func timeAxis(n int, step float64) []float64 {
	cuts := make([]float64, n)
	for i := range cuts {
		cuts[i] = float64(i) * step
	}
	return cuts
}

func testComponents() artifacts.Components {
	names := testFeatureNames()
	n := len(names)
	stats := make([]float64, n)
	center := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	support := make([]int, artifacts.SelectedFeatures)
	for i := range support {
		support[i] = i
	}
	return artifacts.Components{
		FeatureNames:    names,
		ImputerStats:    stats,
		ScalerCenter:    center,
		ScalerScale:     scale,
		SelectorSupport: support,
		DeepHit:         constNet(artifacts.OutputPMF, 40),
		DeepHitCuts:     timeAxis(40, 60),
		LogHazard:       constNet(artifacts.OutputHazard, 50),
		LogHazardCuts:   timeAxis(51, 50),
	}
}

func testStore(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.New(testComponents())
	require.NoError(t, err)
	return store
}

func testPredictor(t *testing.T) *Predictor {
	t.Helper()
	store := testStore(t)
	logger := testLogger()
	recon := NewReconstructor(store, logger, WithSeed(1))
	return NewPredictor(store, recon, logger)
}

// hazardBiasStore swaps the secondary network for one emitting a fixed
// hazard logit at every interval, so the raw first-point survival is
// exactly 1-sigmoid(bias) regardless of the input.
func hazardBiasStore(t *testing.T, bias float64) *artifacts.Store {
	t.Helper()
	c := testComponents()
	hidden := artifacts.HiddenLayer{
		Weight: [][]float64{make([]float64, artifacts.SelectedFeatures)},
		Bias:   []float64{bias},
	}
	out := make([][]float64, 50)
	for i := range out {
		out[i] = []float64{1}
	}
	c.LogHazard = &artifacts.Network{
		InFeatures:   artifacts.SelectedFeatures,
		OutFeatures:  50,
		Output:       artifacts.OutputHazard,
		Hidden:       []artifacts.HiddenLayer{hidden},
		OutputWeight: out,
	}
	store, err := artifacts.New(c)
	require.NoError(t, err)
	return store
}

// degenerateStore collapses the raw survival curve at the first point:
// sigmoid(20) hazards leave survival of roughly 2e-9.
func degenerateStore(t *testing.T) *artifacts.Store {
	t.Helper()
	return hazardBiasStore(t, 20)
}
