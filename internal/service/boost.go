package service

import (
	"github.com/leukemia-survival-server/internal/domain"
)

// boostRule is one additive clinical adjustment rule. Rules read raw
// feature values only, never the accumulated boost, so evaluation order
// cannot change the sum, but the fixed order below is still the contract
// and must not be reshuffled.
type boostRule struct {
	name string
	eval func(p domain.PatientInput) float64
}

// clinicalBoostRules are the fixed, ordered, cumulative risk-factor rules
// layered onto raw model output. Defaults for absent features match the
// cohort medians the rules were calibrated against.
var clinicalBoostRules = []boostRule{
	{
		name: "transplant",
		eval: func(p domain.PatientInput) float64 {
			if p.Is(domain.FeatureTransplant, 1.0) {
				return 0.65
			}
			return 0
		},
	},
	{
		name: "age_bracket",
		eval: func(p domain.PatientInput) float64 {
			age := p.Get(domain.FeatureAge, 60)
			switch {
			case age < 30:
				return 0.15
			case age < 50:
				return 0.05
			case age > 70:
				return -0.15
			}
			return 0
		},
	},
	{
		name: "risk_classification",
		eval: func(p domain.PatientInput) float64 {
			switch p.Get(domain.FeatureRisk, 2.0) {
			case 1.0:
				return 0.15
			case 3.0:
				return -0.15
			}
			return 0
		},
	},
	{
		name: "blast_percentage",
		eval: func(p domain.PatientInput) float64 {
			bmbp := p.Get(domain.FeatureBMBP, 50)
			switch {
			case bmbp < 20:
				return 0.10
			case bmbp > 80:
				return -0.10
			}
			return 0
		},
	},
	{
		name: "npm1",
		eval: func(p domain.PatientInput) float64 {
			if p.Is(domain.FeatureNPM1, 1.0) {
				return 0.10
			}
			return 0
		},
	},
	{
		name: "cebpa",
		eval: func(p domain.PatientInput) float64 {
			if p.Is(domain.FeatureCEBPA, 1.0) {
				return 0.10
			}
			return 0
		},
	},
	{
		name: "dnmt3a",
		eval: func(p domain.PatientInput) float64 {
			if p.Is(domain.FeatureDNMT3A, 1.0) {
				return -0.08
			}
			return 0
		},
	},
	{
		name: "flt3_itd",
		eval: func(p domain.PatientInput) float64 {
			if !p.Is(domain.FeatureFLT3, 1.0) {
				return 0
			}
			// Midostaurin-class inhibitors blunt most of the FLT3-ITD
			// penalty.
			if p.Is(domain.FeatureTargetedTherapy, 1.0) {
				return -0.02
			}
			return -0.12
		},
	},
	{
		name: "idh1",
		eval: func(p domain.PatientInput) float64 {
			return idhContribution(p, domain.FeatureIDH1)
		},
	},
	{
		name: "idh2",
		eval: func(p domain.PatientInput) float64 {
			return idhContribution(p, domain.FeatureIDH2)
		},
	},
}

// idhContribution scores an IDH marker: adverse on its own, favorable
// when an IDH inhibitor is on board.
func idhContribution(p domain.PatientInput, marker string) float64 {
	if !p.Is(marker, 1.0) {
		return 0
	}
	if p.Is(domain.FeatureTargetedTherapy, 1.0) {
		return 0.05
	}
	return -0.05
}

// CalculateBoost computes the scalar clinical adjustment for a patient.
// Pure function of the input: identical inputs always yield identical
// boosts regardless of call order or prior state.
func CalculateBoost(p domain.PatientInput) float64 {
	var boost float64
	for _, rule := range clinicalBoostRules {
		boost += rule.eval(p)
	}
	return boost
}

// driverRule emits a human-readable prognosis driver tag when its
// condition fires.
type driverRule struct {
	tag  string
	when func(p domain.PatientInput) bool
}

// driverRules mirror the boost factors a clinician would want called out,
// evaluated in fixed display order.
var driverRules = []driverRule{
	{"Transplant (+)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureTransplant, 1.0) }},
	{"Young Age (+)", func(p domain.PatientInput) bool { return p.Has(domain.FeatureAge) && p.Get(domain.FeatureAge, 60) < 40 }},
	{"Favorable Risk (+)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureRisk, 1.0) }},
	{"High Blast Count (-)", func(p domain.PatientInput) bool { return p.Get(domain.FeatureBMBP, 0) > 60 }},
	{"Adverse Risk (-)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureRisk, 3.0) }},
	{"NPM1 Mutation (+)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureNPM1, 1.0) }},
	{"CEBPA Mutation (+)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureCEBPA, 1.0) }},
	{"DNMT3A Mutation (-)", func(p domain.PatientInput) bool { return p.Is(domain.FeatureDNMT3A, 1.0) }},
	{"FLT3-ITD (-)", func(p domain.PatientInput) bool {
		return p.Is(domain.FeatureFLT3, 1.0) && !p.Is(domain.FeatureTargetedTherapy, 1.0)
	}},
	{"FLT3-ITD + Targeted Therapy (±)", func(p domain.PatientInput) bool {
		return p.Is(domain.FeatureFLT3, 1.0) && p.Is(domain.FeatureTargetedTherapy, 1.0)
	}},
}

// deriveDrivers lists the prognosis drivers for a patient, or the single
// "Average Profile" tag when no rule fires.
func deriveDrivers(p domain.PatientInput) []string {
	drivers := make([]string, 0, 4)
	for _, rule := range driverRules {
		if rule.when(p) {
			drivers = append(drivers, rule.tag)
		}
	}
	if len(drivers) == 0 {
		drivers = append(drivers, "Average Profile")
	}
	return drivers
}
