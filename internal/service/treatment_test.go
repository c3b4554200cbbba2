package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leukemia-survival-server/internal/domain"
)

func TestSimulateTransplantBenefit(t *testing.T) {
	sim := NewTreatmentSimulator(testPredictor(t), testLogger())

	res, err := sim.Simulate(domain.PatientInput{
		domain.FeatureAge:          45,
		domain.FeatureRisk:         1,
		domain.FeatureBMBP:         30,
		domain.FeatureFLT3:         0,
		domain.FeatureChemotherapy: 1,
		domain.FeatureGender:       0,
		domain.FeatureTransplant:   0,
	})
	require.NoError(t, err)

	// Transplant adds +0.65 to the boost, which must show up as a
	// positive 2-year benefit in percentage points.
	assert.Greater(t, res.SurvivalBenefit, 0.0)
	assert.GreaterOrEqual(t, res.TransplantMedian, res.ChemoMedian)

	assert.Len(t, res.ChemoCurve, 40)
	assert.Len(t, res.TransplantCurve, 40)
	assertValidCurve(t, res.ChemoCurve)
	assertValidCurve(t, res.TransplantCurve)
}

func TestSimulateOverridesTreatmentFields(t *testing.T) {
	sim := NewTreatmentSimulator(testPredictor(t), testLogger())

	// Even a patient already marked as transplanted gets a true
	// chemotherapy-only baseline in scenario A.
	withTx, err := sim.Simulate(domain.PatientInput{
		domain.FeatureAge:        45,
		domain.FeatureTransplant: 1,
	})
	require.NoError(t, err)
	withoutTx, err := sim.Simulate(domain.PatientInput{
		domain.FeatureAge: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, withoutTx.SurvivalBenefit, withTx.SurvivalBenefit)
}

func TestSimulateDoesNotMutateInput(t *testing.T) {
	sim := NewTreatmentSimulator(testPredictor(t), testLogger())

	input := domain.PatientInput{domain.FeatureAge: 45, domain.FeatureTransplant: 0}
	_, err := sim.Simulate(input)
	require.NoError(t, err)

	assert.Equal(t, 0.0, input[domain.FeatureTransplant])
	assert.False(t, input.Has(domain.FeatureChemotherapy))
}

func TestSimulateBenefitRounding(t *testing.T) {
	sim := NewTreatmentSimulator(testPredictor(t), testLogger())

	res, err := sim.Simulate(domain.PatientInput{domain.FeatureAge: 45})
	require.NoError(t, err)

	// One decimal place of percentage points.
	scaled := res.SurvivalBenefit * 10
	assert.InDelta(t, float64(int64(scaled+0.5)), scaled, 1e-9)
}
