package service

import (
	"math"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/domain"
)

// knownFeatureAliases maps user-facing feature keys to the canonical
// column they stand for. The table is resolved once against the fitted
// feature list when the reconstructor is built; request-time placement
// uses exact index lookups only.
var knownFeatureAliases = map[string]string{
	domain.FeatureNPM1: domain.FeatureNPM1Alt,
}

// Reconstructor maps a sparse patient input onto the full ordered feature
// vector the models expect. Unspecified features receive a synthetic
// baseline drawn around the fitted mean; a degenerate all-mean vector
// would otherwise collapse the networks onto a single cohort centroid.
type Reconstructor struct {
	store  *artifacts.Store
	logger *logrus.Logger
	norm   func() float64
	index  map[string]int
}

// ReconstructorOption customizes reconstructor construction.
type ReconstructorOption func(*Reconstructor)

// WithNoiseSource injects the standard-normal sampler used for the
// synthetic baseline, letting tests pin the jitter to a fixed seed.
func WithNoiseSource(norm func() float64) ReconstructorOption {
	return func(r *Reconstructor) {
		r.norm = norm
	}
}

// WithSeed seeds a private deterministic noise source. Intended for tests
// and reproducibility runs; the resulting reconstructor must not be
// shared across goroutines.
func WithSeed(seed int64) ReconstructorOption {
	return func(r *Reconstructor) {
		rng := rand.New(rand.NewSource(seed))
		r.norm = rng.NormFloat64
	}
}

// NewReconstructor builds a reconstructor over the loaded artifacts and
// resolves the feature name index, including the alias table.
func NewReconstructor(store *artifacts.Store, logger *logrus.Logger, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{
		store:  store,
		logger: logger,
		// The default source is the process-wide generator, which is
		// internally locked and safe for concurrent requests.
		norm:  rand.NormFloat64,
		index: make(map[string]int, len(store.FeatureNames)),
	}

	for i, name := range store.FeatureNames {
		r.index[name] = i
	}
	for alias, target := range knownFeatureAliases {
		if _, ok := r.index[alias]; ok {
			continue
		}
		if idx, ok := r.index[target]; ok {
			r.index[alias] = idx
			continue
		}
		// Fall back to first-containment resolution, done once here
		// rather than per request.
		if idx, ok := r.resolveByContainment(target); ok {
			r.index[alias] = idx
			continue
		}
		logger.WithField("alias", alias).Warn("Feature alias did not resolve against fitted feature list")
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolveByContainment finds the first canonical feature whose name
// contains the key. First match wins, matching the fitted column order.
func (r *Reconstructor) resolveByContainment(key string) (int, bool) {
	for i, name := range r.store.FeatureNames {
		if strings.Contains(name, key) {
			return i, true
		}
	}
	return 0, false
}

// Prepare assembles the full-width vector for a patient and runs it
// through the fitted imputer, scaler and selector, producing the fixed
// 60-wide vector both models consume. Supplied values are placed exactly;
// everything else is synthesized as N(mean, 0.1*scale).
func (r *Reconstructor) Prepare(input domain.PatientInput) ([]float64, error) {
	in := input.Clone()
	in.ApplyAliases()

	stats := r.store.ImputerStats
	scale := r.store.ScalerScale

	base := make([]float64, r.store.FullWidth())
	for i := range base {
		base[i] = stats[i] + 0.1*scale[i]*r.norm()
	}

	for key, value := range in {
		idx, ok := r.index[key]
		if !ok {
			r.logger.WithField("feature", key).Debug("Supplied feature not in fitted feature list; ignored")
			continue
		}
		base[idx] = value
	}

	// Imputation: fill anything still unresolved (a supplied NaN) with
	// the fitted statistic.
	for i, v := range base {
		if math.IsNaN(v) {
			base[i] = stats[i]
		}
	}

	// Standard scaling.
	scaled := make([]float64, len(base))
	for i, v := range base {
		s := scale[i]
		if s == 0 {
			s = 1
		}
		scaled[i] = (v - r.store.ScalerCenter[i]) / s
	}

	// Feature selection down to the model input width.
	selected := make([]float64, len(r.store.SelectorSupport))
	for i, idx := range r.store.SelectorSupport {
		selected[i] = scaled[idx]
	}
	return selected, nil
}
