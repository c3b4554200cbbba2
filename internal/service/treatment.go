package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/domain"
)

// TreatmentSimulator runs the adjustment engine twice under
// counterfactual transplant settings and reports the 2-year survival
// delta. Pure composition of two independent predictions; the primary
// model is used because it captures long-horizon outcomes better.
type TreatmentSimulator struct {
	predictor *Predictor
	logger    *logrus.Logger
}

// NewTreatmentSimulator wires the simulator over the predictor.
func NewTreatmentSimulator(predictor *Predictor, logger *logrus.Logger) *TreatmentSimulator {
	return &TreatmentSimulator{predictor: predictor, logger: logger}
}

// Simulate compares chemotherapy-only against transplant for the same
// patient. Scenario A forces Transplant=0 and Chemotherapy=1; Scenario B
// forces Transplant=1 with other fields unchanged.
func (t *TreatmentSimulator) Simulate(input domain.PatientInput) (*domain.TreatmentComparison, error) {
	chemo := input.Clone()
	chemo[domain.FeatureTransplant] = 0.0
	chemo[domain.FeatureChemotherapy] = 1.0

	tx := input.Clone()
	tx[domain.FeatureTransplant] = 1.0

	chemoPred, err := t.predictor.Predict(chemo, domain.ModelDeepHit)
	if err != nil {
		return nil, err
	}
	txPred, err := t.predictor.Predict(tx, domain.ModelDeepHit)
	if err != nil {
		return nil, err
	}

	benefit := txPred.FixedTimeSurvival.TwoYears - chemoPred.FixedTimeSurvival.TwoYears

	result := &domain.TreatmentComparison{
		ChemoCurve:       chemoPred.SurvivalCurve,
		TransplantCurve:  txPred.SurvivalCurve,
		SurvivalBenefit:  math.Round(benefit*1000) / 10, // percentage points, one decimal
		ChemoMedian:      chemoPred.MedianSurvivalDays,
		TransplantMedian: txPred.MedianSurvivalDays,
	}

	t.logger.WithFields(logrus.Fields{
		"benefit_2yr":       result.SurvivalBenefit,
		"chemo_median":      result.ChemoMedian,
		"transplant_median": result.TransplantMedian,
	}).Debug("Treatment simulation complete")

	return result, nil
}
