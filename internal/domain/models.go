package domain

// CurvePoint is one (time, probability) sample of a survival or hazard
// curve. Time is measured in days from diagnosis.
type CurvePoint struct {
	Time        float64 `json:"time"`
	Probability float64 `json:"probability"`
}

// SurvivalCurve is an ordered sequence of curve points with strictly
// increasing time and non-increasing probability.
type SurvivalCurve []CurvePoint

// ProbabilityAt returns the probability at the sample nearest to t.
func (c SurvivalCurve) ProbabilityAt(t float64) float64 {
	if len(c) == 0 {
		return 0
	}
	best := 0
	bestDist := absF(c[0].Time - t)
	for i := 1; i < len(c); i++ {
		if d := absF(c[i].Time - t); d < bestDist {
			best, bestDist = i, d
		}
	}
	return c[best].Probability
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FixedTimeSurvival holds interpolated survival probabilities at the
// standard reporting horizons.
type FixedTimeSurvival struct {
	OneYear    float64 `json:"1_year"`
	TwoYears   float64 `json:"2_years"`
	ThreeYears float64 `json:"3_years"`
}

// PredictionResult is the terminal artifact of a single prediction call.
// It is constructed fresh per request, never persisted, and every field is
// plain JSON-serializable data.
type PredictionResult struct {
	SurvivalCurve      SurvivalCurve     `json:"survival_curve"`
	HazardCurve        SurvivalCurve     `json:"hazard_curve"`
	RiskGroup          RiskTier          `json:"risk_group"`
	RiskCSS            string            `json:"risk_css"`
	MedianSurvivalDays float64           `json:"median_survival_time_days"`
	RawRiskScore2yr    float64           `json:"raw_risk_score_2yr"`
	FixedTimeSurvival  FixedTimeSurvival `json:"fixed_time_survival"`
	Drivers            []string          `json:"drivers"`
}

// CohortRowResult summarizes one processed row of an uploaded dataset.
type CohortRowResult struct {
	Index       int           `json:"index"`
	PatientID   string        `json:"patient_id,omitempty"`
	Survival2yr float64       `json:"survival_2yr"`
	RiskGroup   RiskTier      `json:"risk_group"`
	Insight     string        `json:"insight"`
	Curve       SurvivalCurve `json:"curve"`
}

// SkippedRow annotates a cohort row that failed prediction and was
// excluded from the aggregates.
type SkippedRow struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// CohortStats holds cohort-level prevalence statistics.
type CohortStats struct {
	PatientCount     int     `json:"patient_count"`
	MeanSurvival2yr  float64 `json:"mean_survival_2yr"`
	HighRiskFraction float64 `json:"high_risk_fraction"`
	FLT3Rate         float64 `json:"flt3_rate"`
	DNMT3ARate       float64 `json:"dnmt3a_rate"`
	NPM1Rate         float64 `json:"npm1_rate"`
	TransplantRate   float64 `json:"transplant_rate"`
}

// CohortSummary aggregates per-row predictions for an uploaded dataset.
// Built once per batch request and discarded after the response.
type CohortSummary struct {
	Rows             []CohortRowResult `json:"rows"`
	Skipped          []SkippedRow      `json:"skipped,omitempty"`
	Stats            CohortStats       `json:"stats"`
	BestCaseCurve    SurvivalCurve     `json:"best_case_curve"`
	WorstCaseCurve   SurvivalCurve     `json:"worst_case_curve"`
	RiskNarrative    string            `json:"risk_narrative"`
	TreatmentSummary string            `json:"treatment_summary"`
}

// TreatmentComparison reports the counterfactual transplant simulation.
// Benefit is the 2-year survival delta in percentage points.
type TreatmentComparison struct {
	ChemoCurve       SurvivalCurve `json:"chemo_curve"`
	TransplantCurve  SurvivalCurve `json:"transplant_curve"`
	SurvivalBenefit  float64       `json:"survival_benefit_2yr"`
	ChemoMedian      float64       `json:"chemo_median"`
	TransplantMedian float64       `json:"transplant_median"`
}

// TrialProfile is the subset of patient features trial eligibility
// criteria are evaluated against.
type TrialProfile struct {
	Age        float64 `json:"age"`
	FLT3       float64 `json:"flt3_itd"`
	Transplant float64 `json:"transplant"`
	RiskClass  float64 `json:"risk_classification"`
}

// Trial is one clinical trial record from the trial store.
type Trial struct {
	ID          int64   `json:"-"`
	TrialID     string  `json:"id"`
	Title       string  `json:"title"`
	Category    string  `json:"type"`
	Status      string  `json:"status"`
	MinAge      float64 `json:"min_age"`
	MaxAge      float64 `json:"max_age"`
	RequireFLT3 bool    `json:"requires_flt3"`
	RequireTx   bool    `json:"requires_transplant"`
	RiskClass   float64 `json:"required_risk_class"` // 0 means any
}

// ModelMetrics are the static validation metrics reported alongside
// predictions for the comparison table.
type ModelMetrics struct {
	CIndex   float64 `json:"C_index"`
	IBS      string  `json:"IBS"`
	Features int     `json:"Features"`
}

// ComparativeMetrics holds the published metrics for both models.
var ComparativeMetrics = map[string]ModelMetrics{
	"DeepHit":   {CIndex: 0.6888, IBS: "N/A*", Features: 500},
	"LogHazard": {CIndex: 0.6183, IBS: "0.215", Features: 60},
}
