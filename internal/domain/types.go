package domain

import (
	"fmt"
	"math"
	"strconv"
)

// ModelChoice identifies one of the two supported survival networks.
type ModelChoice string

const (
	// ModelDeepHit is the primary model. It discretizes follow-up into 40
	// intervals and tends to capture long-horizon outcomes better.
	ModelDeepHit ModelChoice = "deephit"
	// ModelLogHazard is the secondary model (50 intervals). Its clinical
	// boost is weighted 1.4x and it is the only model with a hazard curve.
	ModelLogHazard ModelChoice = "loghazard"
)

// Valid reports whether the choice names a supported model.
func (m ModelChoice) Valid() bool {
	return m == ModelDeepHit || m == ModelLogHazard
}

// String implements fmt.Stringer.
func (m ModelChoice) String() string {
	return string(m)
}

// RiskTier is the categorical bucket derived from 2-year survival.
type RiskTier string

const (
	RiskLow          RiskTier = "Low Risk"
	RiskIntermediate RiskTier = "Intermediate"
	RiskHigh         RiskTier = "High Risk"
	RiskVeryHigh     RiskTier = "Very High Risk"
)

// CSSClass returns the dashboard styling hook for the tier.
func (r RiskTier) CSSClass() string {
	switch r {
	case RiskLow:
		return "val-low"
	case RiskIntermediate:
		return "val-neutral"
	default:
		return "val-high"
	}
}

// RiskTierFor maps a 2-year survival probability onto a tier using the
// fixed clinical thresholds. Boundaries are inclusive on the high side:
// exactly 0.80 is Low, exactly 0.60 is Intermediate, exactly 0.40 is High.
func RiskTierFor(survival2yr float64) RiskTier {
	switch {
	case survival2yr >= 0.80:
		return RiskLow
	case survival2yr >= 0.60:
		return RiskIntermediate
	case survival2yr >= 0.40:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// Canonical clinical feature names used by the boost rules and the
// feature reconstructor. These match the column names the preprocessing
// artifacts were fitted on.
const (
	FeatureAge             = "Age"
	FeatureRisk            = "Risk_Classification"
	FeatureBMBP            = "BMBP"
	FeatureFLT3            = "FLT3.ITD"
	FeatureChemotherapy    = "Chemotherapy"
	FeatureGender          = "Gender"
	FeatureTransplant      = "Transplant"
	FeatureNPM1            = "NPM1"
	FeatureNPM1Alt         = "NPM1.Mutation"
	FeatureCEBPA           = "CEBPA"
	FeatureDNMT3A          = "DNMT3A"
	FeatureIDH1            = "IDH1"
	FeatureIDH2            = "IDH2"
	FeatureTargetedTherapy = "Targeted_Therapy"
)

// RequiredFeatures are the parameters the boundary layer insists on for
// single-patient prediction requests.
var RequiredFeatures = []string{
	FeatureAge,
	FeatureRisk,
	FeatureBMBP,
	FeatureFLT3,
	FeatureChemotherapy,
	FeatureGender,
	FeatureTransplant,
}

// PatientInput is a sparse mapping from clinical feature name to numeric
// value. Any subset of features may be present; the reconstructor
// synthesizes the rest.
type PatientInput map[string]float64

// Get returns the value for a feature, or the fallback when absent.
func (p PatientInput) Get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Has reports whether the feature was supplied.
func (p PatientInput) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Is reports whether the feature was supplied with exactly the given value.
func (p PatientInput) Is(name string, value float64) bool {
	v, ok := p[name]
	return ok && v == value
}

// Clone returns an independent copy of the input.
func (p PatientInput) Clone() PatientInput {
	out := make(PatientInput, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ApplyAliases normalizes known alternate feature keys in place. The one
// known rule maps the NPM1 marker between its short form and the internal
// column name, whichever direction is missing.
func (p PatientInput) ApplyAliases() {
	if v, ok := p[FeatureNPM1Alt]; ok && !p.Has(FeatureNPM1) {
		p[FeatureNPM1] = v
	}
	if v, ok := p[FeatureNPM1]; ok && !p.Has(FeatureNPM1Alt) {
		p[FeatureNPM1Alt] = v
	}
}

// CoerceCell attempts to interpret a raw tabular cell as a numeric feature
// value. Identifier-like cells (names, codes) report ok=false and are left
// to the caller untouched.
func CoerceCell(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseModelChoice validates a request-supplied model identifier,
// defaulting to the primary model when empty.
func ParseModelChoice(s string) (ModelChoice, error) {
	if s == "" {
		return ModelDeepHit, nil
	}
	m := ModelChoice(s)
	if !m.Valid() {
		return "", &InvalidModelChoiceError{Choice: s}
	}
	return m, nil
}

// InvalidModelChoiceError reports an unsupported model identifier.
type InvalidModelChoiceError struct {
	Choice string
}

// Error implements the error interface.
func (e *InvalidModelChoiceError) Error() string {
	return fmt.Sprintf("invalid model choice %q: must be %q or %q", e.Choice, ModelDeepHit, ModelLogHazard)
}
