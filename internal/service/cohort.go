package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/domain"
)

// identifierColumns are the non-feature columns recognized as patient
// labels in uploaded datasets, checked in order.
var identifierColumns = []string{"Patient_ID", "PatientID", "ID", "Name"}

// CohortProcessor repeats reconstruction and adjustment per row of an
// uploaded dataset and aggregates cohort-level statistics. The batch path
// always uses the primary model and applies the boost uniformly across
// all time points; the time-decay weighting of the single-patient path
// is deliberately omitted for throughput.
type CohortProcessor struct {
	predictor *Predictor
	logger    *logrus.Logger
}

// NewCohortProcessor wires the batch processor over the predictor.
func NewCohortProcessor(predictor *Predictor, logger *logrus.Logger) *CohortProcessor {
	return &CohortProcessor{predictor: predictor, logger: logger}
}

// Process runs the pipeline once per row and builds the cohort summary.
// The caller is responsible for capping the row count; an empty row set
// is rejected with ErrEmptyCohort. A row whose prediction fails is
// skipped and annotated rather than aborting the batch.
func (c *CohortProcessor) Process(rows []map[string]string) (*domain.CohortSummary, error) {
	if len(rows) == 0 {
		return nil, domain.ErrEmptyCohort
	}

	summary := &domain.CohortSummary{
		Rows: make([]domain.CohortRowResult, 0, len(rows)),
	}

	var (
		survivalSum float64
		highRisk    int
		flt3        int
		dnmt3a      int
		npm1        int
		transplant  int
		bestIdx     = -1
		worstIdx    = -1
		bestVal     float64
		worstVal    float64
	)

	for i, raw := range rows {
		input, patientID := coerceRow(raw)
		input.ApplyAliases()

		times, probs, err := c.predictor.rawCurve(input, domain.ModelDeepHit)
		if err != nil {
			c.logger.WithError(err).WithField("row", i).Warn("Cohort row failed prediction; skipping")
			summary.Skipped = append(summary.Skipped, domain.SkippedRow{Index: i, Reason: err.Error()})
			continue
		}

		// Uniform boost: no decay weighting on the batch path.
		boost := CalculateBoost(input)
		adjusted := make([]float64, len(probs))
		for j, v := range probs {
			adjusted[j] = clamp01(v + boost)
		}
		adjusted[0] = 1.0
		enforceMonotone(adjusted)

		prob2yr := adjusted[nearestIndex(times, horizonTwoYears)]
		tier := domain.RiskTierFor(prob2yr)

		row := domain.CohortRowResult{
			Index:       i,
			PatientID:   patientID,
			Survival2yr: roundTo(prob2yr, 4),
			RiskGroup:   tier,
			Insight:     rowInsight(prob2yr, input.Is(domain.FeatureFLT3, 1.0)),
			Curve:       makeCurve(times, adjusted),
		}
		summary.Rows = append(summary.Rows, row)

		survivalSum += prob2yr
		if tier == domain.RiskHigh || tier == domain.RiskVeryHigh {
			highRisk++
		}
		if input.Is(domain.FeatureFLT3, 1.0) {
			flt3++
		}
		if input.Is(domain.FeatureDNMT3A, 1.0) {
			dnmt3a++
		}
		if input.Is(domain.FeatureNPM1, 1.0) {
			npm1++
		}
		if input.Is(domain.FeatureTransplant, 1.0) {
			transplant++
		}

		// Compare against the unrounded incumbents; the reported
		// Survival2yr is rounded and could mask the true extremes.
		last := len(summary.Rows) - 1
		if bestIdx < 0 || prob2yr > bestVal {
			bestIdx, bestVal = last, prob2yr
		}
		if worstIdx < 0 || prob2yr < worstVal {
			worstIdx, worstVal = last, prob2yr
		}
	}

	if len(summary.Rows) == 0 {
		return nil, domain.NewPredictionError("every cohort row failed prediction", nil)
	}

	n := float64(len(summary.Rows))
	summary.Stats = domain.CohortStats{
		PatientCount:     len(summary.Rows),
		MeanSurvival2yr:  roundTo(survivalSum/n, 4),
		HighRiskFraction: roundTo(float64(highRisk)/n, 4),
		FLT3Rate:         roundTo(float64(flt3)/n, 4),
		DNMT3ARate:       roundTo(float64(dnmt3a)/n, 4),
		NPM1Rate:         roundTo(float64(npm1)/n, 4),
		TransplantRate:   roundTo(float64(transplant)/n, 4),
	}
	summary.BestCaseCurve = summary.Rows[bestIdx].Curve
	summary.WorstCaseCurve = summary.Rows[worstIdx].Curve
	summary.RiskNarrative = buildNarrative(riskNarrativeRules, summary.Stats)
	summary.TreatmentSummary = buildNarrative(treatmentNarrativeRules, summary.Stats)

	c.logger.WithFields(logrus.Fields{
		"rows":     len(summary.Rows),
		"skipped":  len(summary.Skipped),
		"mean_2yr": summary.Stats.MeanSurvival2yr,
	}).Info("Cohort batch processed")

	return summary, nil
}

// coerceRow converts raw tabular cells to numeric features. Non-numeric
// cells pass through untouched; recognized identifier columns become the
// patient label.
func coerceRow(raw map[string]string) (domain.PatientInput, string) {
	input := make(domain.PatientInput, len(raw))
	for key, cell := range raw {
		if v, ok := domain.CoerceCell(cell); ok {
			input[key] = v
		}
	}
	var patientID string
	for _, col := range identifierColumns {
		if v, ok := raw[col]; ok && v != "" {
			patientID = v
			break
		}
	}
	return input, patientID
}

// rowInsight templates a short free-text note from the 2-year probability
// band and FLT3 status.
func rowInsight(prob2yr float64, flt3 bool) string {
	var b strings.Builder
	switch {
	case prob2yr >= 0.70:
		b.WriteString("Favorable projected response to standard induction")
	case prob2yr >= 0.40:
		b.WriteString("Intermediate outlook; monitor minimal residual disease")
	default:
		b.WriteString("Poor projected outcome; consider intensified or investigational protocol")
	}
	if flt3 {
		b.WriteString("; FLT3-ITD positive, candidate for targeted inhibitor therapy")
	}
	return b.String()
}

// narrativeRule emits one narrative fragment when its condition holds for
// the cohort statistics. Fragments are evaluated in fixed order and
// joined once.
type narrativeRule struct {
	when     func(s domain.CohortStats) bool
	fragment func(s domain.CohortStats) string
}

var riskNarrativeRules = []narrativeRule{
	{
		when: func(s domain.CohortStats) bool { return true },
		fragment: func(s domain.CohortStats) string {
			return fmt.Sprintf("Cohort mean 2-year survival is %.1f%%.", s.MeanSurvival2yr*100)
		},
	},
	{
		when: func(s domain.CohortStats) bool { return s.HighRiskFraction > 0.50 },
		fragment: func(s domain.CohortStats) string {
			return "More than half of the cohort falls in a high-risk tier."
		},
	},
	{
		when: func(s domain.CohortStats) bool { return s.FLT3Rate > 0.30 },
		fragment: func(s domain.CohortStats) string {
			return fmt.Sprintf("FLT3-ITD prevalence is elevated (%.0f%%), suggesting a role for targeted inhibitors.", s.FLT3Rate*100)
		},
	},
	{
		when: func(s domain.CohortStats) bool { return s.DNMT3ARate > 0.25 },
		fragment: func(s domain.CohortStats) string {
			return "DNMT3A mutations are common in this cohort and may portend inferior outcomes."
		},
	},
}

var treatmentNarrativeRules = []narrativeRule{
	{
		when: func(s domain.CohortStats) bool { return true },
		fragment: func(s domain.CohortStats) string {
			return fmt.Sprintf("Transplant rate across the cohort is %.0f%%.", s.TransplantRate*100)
		},
	},
	{
		when: func(s domain.CohortStats) bool { return s.TransplantRate < 0.50 },
		fragment: func(s domain.CohortStats) string {
			return "Allogeneic transplant appears under-utilized relative to the cohort risk profile."
		},
	},
	{
		when: func(s domain.CohortStats) bool { return s.NPM1Rate > 0.30 },
		fragment: func(s domain.CohortStats) string {
			return "A sizeable NPM1-mutated subgroup may respond well to standard chemotherapy."
		},
	},
}

// buildNarrative evaluates the rule table in order and joins the fired
// fragments with single spaces.
func buildNarrative(rules []narrativeRule, stats domain.CohortStats) string {
	fragments := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule.when(stats) {
			fragments = append(fragments, rule.fragment(stats))
		}
	}
	return strings.Join(fragments, " ")
}
