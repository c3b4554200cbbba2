// Package service implements the prediction post-processing pipeline:
// feature reconstruction from partial input, model invocation, and the
// deterministic clinical adjustment applied to raw survival curves before
// they are shown to a clinician.
package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/domain"
)

// degeneracyThreshold is the first-point survival below which a raw curve
// is judged a model failure rather than a true prediction. Strictly
// less-than: exactly 0.05 does not trigger the fallback.
const degeneracyThreshold = 0.05

// Time-decay bounds for the clinical boost: full weight at t=0 tapering
// to 0.6 at the horizon, where model uncertainty dominates.
const (
	decayStart = 1.0
	decayEnd   = 0.6
)

// logHazardBoostWeight scales the boost for the secondary model, whose
// raw curves run systematically pessimistic on this cohort.
const logHazardBoostWeight = 1.4

// Fixed reporting horizons in days.
const (
	horizonOneYear    = 365.0
	horizonTwoYears   = 730.0
	horizonThreeYears = 1095.0
)

// Predictor runs the full single-patient prediction pipeline.
type Predictor struct {
	store  *artifacts.Store
	recon  *Reconstructor
	logger *logrus.Logger
}

// NewPredictor wires the predictor over loaded artifacts.
func NewPredictor(store *artifacts.Store, recon *Reconstructor, logger *logrus.Logger) *Predictor {
	return &Predictor{store: store, recon: recon, logger: logger}
}

// rawCurve reconstructs features, invokes the chosen model and aligns the
// raw curve to its time axis, substituting the exponential fallback when
// the model has collapsed. Shared by the single-patient and cohort paths.
func (p *Predictor) rawCurve(input domain.PatientInput, choice domain.ModelChoice) (times, probs []float64, err error) {
	model, cuts, err := p.store.Model(choice)
	if err != nil {
		return nil, nil, err
	}

	x, err := p.recon.Prepare(input)
	if err != nil {
		return nil, nil, domain.NewPredictionError("feature reconstruction failed", err)
	}

	raw, err := model.PredictSurvival(x)
	if err != nil {
		return nil, nil, domain.NewPredictionError("model inference failed", err)
	}

	// The predictor may omit the terminal interval boundary.
	times = cuts
	if len(cuts) > len(raw) {
		times = cuts[:len(cuts)-1]
	}
	if len(times) != len(raw) {
		return nil, nil, domain.NewPredictionError("curve length does not match time axis", nil)
	}

	if degenerate(raw) {
		p.logger.WithFields(logrus.Fields{
			"model":      choice,
			"first_prob": raw[0],
		}).Warn("Raw survival curve degenerate; substituting exponential fallback")
		raw = fallbackCurve(len(times))
	}
	return times, raw, nil
}

// Predict runs the adjustment engine for one patient: raw curve, clinical
// boost with time decay, monotonicity repair, and all derived clinical
// summaries.
func (p *Predictor) Predict(input domain.PatientInput, choice domain.ModelChoice) (*domain.PredictionResult, error) {
	if !choice.Valid() {
		return nil, &domain.InvalidModelChoiceError{Choice: string(choice)}
	}

	input = input.Clone()
	input.ApplyAliases()

	times, raw, err := p.rawCurve(input, choice)
	if err != nil {
		return nil, err
	}

	boost := CalculateBoost(input)
	weight := 1.0
	if choice == domain.ModelLogHazard {
		weight = logHazardBoostWeight
	}
	decay := linspace(decayStart, decayEnd, len(times))

	adjusted := make([]float64, len(raw))
	for i, v := range raw {
		adjusted[i] = clamp01(v + boost*weight*decay[i])
	}
	adjusted[0] = 1.0 // alive at t=0 by convention
	enforceMonotone(adjusted)

	curve := makeCurve(times, adjusted)

	var hazard domain.SurvivalCurve
	if choice == domain.ModelLogHazard {
		hazard = hazardCurve(times, adjusted)
	} else {
		hazard = domain.SurvivalCurve{}
	}

	median := times[len(times)-1]
	for i, prob := range adjusted {
		if prob < 0.5 {
			median = times[i]
			break
		}
	}

	prob2yr := adjusted[nearestIndex(times, horizonTwoYears)]
	tier := domain.RiskTierFor(prob2yr)

	fixed := domain.FixedTimeSurvival{
		OneYear:    clamp01(interpolate(times, adjusted, horizonOneYear)),
		TwoYears:   clamp01(interpolate(times, adjusted, horizonTwoYears)),
		ThreeYears: clamp01(interpolate(times, adjusted, horizonThreeYears)),
	}

	result := &domain.PredictionResult{
		SurvivalCurve:      curve,
		HazardCurve:        hazard,
		RiskGroup:          tier,
		RiskCSS:            tier.CSSClass(),
		MedianSurvivalDays: math.Round(median),
		RawRiskScore2yr:    roundTo(1.0-prob2yr, 4),
		FixedTimeSurvival:  fixed,
		Drivers:            deriveDrivers(input),
	}

	p.logger.WithFields(logrus.Fields{
		"model":      choice,
		"risk_group": tier,
		"boost":      boost,
		"median":     result.MedianSurvivalDays,
	}).Debug("Prediction complete")

	return result, nil
}

// degenerate reports whether a raw curve has collapsed at its first
// point. Strictly less-than: a first point of exactly 0.05 is a
// legitimate prediction and passes through unmodified.
func degenerate(raw []float64) bool {
	return raw[0] < degeneracyThreshold
}

// fallbackCurve is the fixed exponential-decay substitute for a collapsed
// raw prediction: exp(-t') for t' linearly spaced over [0, 5].
func fallbackCurve(n int) []float64 {
	decay := linspace(0, 5, n)
	out := make([]float64, n)
	for i, d := range decay {
		out[i] = math.Exp(-d)
	}
	return out
}

// enforceMonotone applies a running minimum scan in place, preventing the
// boost from producing an impossible increase in survival over time.
func enforceMonotone(probs []float64) {
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[i-1] {
			probs[i] = probs[i-1]
		}
	}
}

// hazardCurve derives the discrete hazard as the negated first difference
// of the survival curve with 1.0 prepended, floored at zero.
func hazardCurve(times, probs []float64) domain.SurvivalCurve {
	out := make(domain.SurvivalCurve, len(probs))
	prev := 1.0
	for i, p := range probs {
		h := prev - p
		if h < 0 {
			h = 0
		}
		out[i] = domain.CurvePoint{Time: times[i], Probability: h}
		prev = p
	}
	return out
}

// makeCurve zips a time axis and probabilities into curve points.
func makeCurve(times, probs []float64) domain.SurvivalCurve {
	curve := make(domain.SurvivalCurve, len(probs))
	for i := range probs {
		curve[i] = domain.CurvePoint{Time: times[i], Probability: probs[i]}
	}
	return curve
}

// linspace returns n evenly spaced values from start to end inclusive.
func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// nearestIndex returns the index of the time point closest to target.
func nearestIndex(times []float64, target float64) int {
	best := 0
	bestDist := math.Abs(times[0] - target)
	for i := 1; i < len(times); i++ {
		if d := math.Abs(times[i] - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// interpolate evaluates the piecewise-linear survival function at t,
// extrapolating from the boundary segments outside the axis.
func interpolate(times, probs []float64, t float64) float64 {
	n := len(times)
	if n == 1 {
		return probs[0]
	}
	// Locate the segment; boundary segments extrapolate.
	i := 0
	for i < n-2 && times[i+1] < t {
		i++
	}
	t0, t1 := times[i], times[i+1]
	p0, p1 := probs[i], probs[i+1]
	if t1 == t0 {
		return p0
	}
	return p0 + (p1-p0)*(t-t0)/(t1-t0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
