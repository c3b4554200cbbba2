package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/domain"
)

func TestPrepareWidth(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithSeed(1))

	x, err := r.Prepare(domain.PatientInput{})
	require.NoError(t, err)
	assert.Len(t, x, artifacts.SelectedFeatures)
}

// With identity preprocessing a supplied value must land in the scaled
// vector byte-for-byte: no jitter, no rounding through the imputer.
func TestPrepareExactPlacement(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithSeed(7))

	x, err := r.Prepare(domain.PatientInput{
		domain.FeatureAge:  45,
		domain.FeatureBMBP: 30.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, x[0])
	assert.Equal(t, 30.5, x[2])
}

func TestPrepareSynthesizesUnspecified(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithSeed(7))

	x, err := r.Prepare(domain.PatientInput{})
	require.NoError(t, err)

	// The baseline is jittered around the fitted mean (zero here), so at
	// least some positions must differ from the mean itself.
	var nonzero int
	for _, v := range x {
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 0)
}

func TestPrepareDeterministicForSeed(t *testing.T) {
	input := domain.PatientInput{domain.FeatureAge: 45, domain.FeatureRisk: 1}
	store := testStore(t)

	a := NewReconstructor(store, testLogger(), WithSeed(42))
	b := NewReconstructor(store, testLogger(), WithSeed(42))

	xa, err := a.Prepare(input)
	require.NoError(t, err)
	xb, err := b.Prepare(input)
	require.NoError(t, err)
	assert.Equal(t, xa, xb)
}

func TestPrepareImputesNaN(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithSeed(3))

	x, err := r.Prepare(domain.PatientInput{domain.FeatureAge: math.NaN()})
	require.NoError(t, err)
	// The fitted statistic for Age is 0 in the fixture.
	assert.Equal(t, 0.0, x[0])
}

func TestPrepareResolvesNPM1Alias(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithSeed(3))

	x, err := r.Prepare(domain.PatientInput{domain.FeatureNPM1: 1})
	require.NoError(t, err)
	// "NPM1" is not a fitted column; the value must land on
	// "NPM1.Mutation" at index 7.
	assert.Equal(t, 1.0, x[7])
}

func TestAliasContainmentFallback(t *testing.T) {
	c := testComponents()
	names := make([]string, len(c.FeatureNames))
	copy(names, c.FeatureNames)
	names[7] = "Panel_NPM1.Mutation_v2"
	c.FeatureNames = names
	store, err := artifacts.New(c)
	require.NoError(t, err)

	r := NewReconstructor(store, testLogger(), WithSeed(3))

	x, err := r.Prepare(domain.PatientInput{domain.FeatureNPM1: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[7])
}

func TestPrepareIgnoresUnknownFeatures(t *testing.T) {
	store := testStore(t)
	a := NewReconstructor(store, testLogger(), WithSeed(11))
	b := NewReconstructor(store, testLogger(), WithSeed(11))

	xa, err := a.Prepare(domain.PatientInput{domain.FeatureAge: 45})
	require.NoError(t, err)
	xb, err := b.Prepare(domain.PatientInput{domain.FeatureAge: 45, "Not_A_Column": 99})
	require.NoError(t, err)
	assert.Equal(t, xa, xb)
}

func TestWithNoiseSource(t *testing.T) {
	r := NewReconstructor(testStore(t), testLogger(), WithNoiseSource(func() float64 { return 0 }))

	x, err := r.Prepare(domain.PatientInput{})
	require.NoError(t, err)
	for i, v := range x {
		assert.Zerof(t, v, "position %d", i)
	}
}
