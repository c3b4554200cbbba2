// Package artifacts loads the frozen preprocessing objects and survival
// networks the prediction pipeline depends on. Loading is all-or-nothing
// and happens exactly once at startup; the resulting Store is immutable
// and safe for unsynchronized concurrent reads.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/leukemia-survival-server/internal/domain"
)

// Fixed artifact file names under the models directory. The files are an
// opaque versioned contract produced by the training pipeline.
const (
	ImputerFile      = "imputer.json"
	ScalerFile       = "scaler.json"
	SelectorFile     = "feature_selector_k60.json"
	DeepHitCutsFile  = "label_trans_40.json"
	LogHazardCuts    = "labtrans_50.json"
	DeepHitNetFile   = "deephit_final.json"
	LogHazardNetFile = "loghazard_final.json"
)

// SelectedFeatures is the fixed input width both networks consume after
// feature selection.
const SelectedFeatures = 60

// imputerArtifact mirrors the fitted mean imputer: the canonical ordered
// feature list and the per-feature fill statistic.
type imputerArtifact struct {
	Strategy     string    `json:"strategy"`
	FeatureNames []string  `json:"feature_names"`
	Statistics   []float64 `json:"statistics"`
}

// scalerArtifact mirrors the fitted standard scaler.
type scalerArtifact struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"`
}

// selectorArtifact mirrors the fitted k-best selector: the indices of the
// retained columns in the full-width vector.
type selectorArtifact struct {
	K       int   `json:"k"`
	Support []int `json:"support"`
}

// cutsArtifact mirrors a label transform's discrete time axis.
type cutsArtifact struct {
	Cuts []float64 `json:"cuts"`
}

// Store is the process-wide registry of fitted preprocessing objects and
// loaded networks. Read-only after Load.
type Store struct {
	FeatureNames    []string
	ImputerStats    []float64
	ScalerCenter    []float64
	ScalerScale     []float64
	SelectorSupport []int

	deepHit       *Network
	deepHitCuts   []float64
	logHazard     *Network
	logHazardCuts []float64
}

// Components are the materialized artifact contents New assembles into a
// Store. Split out so tests can inject fake artifacts without touching
// the filesystem.
type Components struct {
	FeatureNames    []string
	ImputerStats    []float64
	ScalerCenter    []float64
	ScalerScale     []float64
	SelectorSupport []int
	DeepHit         *Network
	DeepHitCuts     []float64
	LogHazard       *Network
	LogHazardCuts   []float64
}

// New assembles a Store from already-materialized components, applying
// the same cross-consistency checks Load applies to files on disk.
func New(c Components) (*Store, error) {
	if len(c.FeatureNames) == 0 || len(c.FeatureNames) != len(c.ImputerStats) {
		return nil, domain.NewArtifactError(ImputerFile,
			fmt.Sprintf("feature names (%d) and statistics (%d) disagree", len(c.FeatureNames), len(c.ImputerStats)), nil)
	}
	if len(c.ScalerScale) != len(c.FeatureNames) || len(c.ScalerCenter) != len(c.FeatureNames) {
		return nil, domain.NewArtifactError(ScalerFile,
			fmt.Sprintf("scaler width %d does not match %d features", len(c.ScalerScale), len(c.FeatureNames)), nil)
	}
	if len(c.SelectorSupport) != SelectedFeatures {
		return nil, domain.NewArtifactError(SelectorFile,
			fmt.Sprintf("selector keeps %d features, expected %d", len(c.SelectorSupport), SelectedFeatures), nil)
	}
	for _, idx := range c.SelectorSupport {
		if idx < 0 || idx >= len(c.FeatureNames) {
			return nil, domain.NewArtifactError(SelectorFile,
				fmt.Sprintf("support index %d outside feature width %d", idx, len(c.FeatureNames)), nil)
		}
	}
	if err := checkCuts(c.DeepHitCuts); err != nil {
		return nil, domain.NewArtifactError(DeepHitCutsFile, err.Error(), nil)
	}
	if err := checkCuts(c.LogHazardCuts); err != nil {
		return nil, domain.NewArtifactError(LogHazardCuts, err.Error(), nil)
	}
	if err := checkNetwork(c.DeepHit, OutputPMF, c.DeepHitCuts); err != nil {
		return nil, domain.NewArtifactError(DeepHitNetFile, err.Error(), nil)
	}
	if err := checkNetwork(c.LogHazard, OutputHazard, c.LogHazardCuts); err != nil {
		return nil, domain.NewArtifactError(LogHazardNetFile, err.Error(), nil)
	}

	return &Store{
		FeatureNames:    c.FeatureNames,
		ImputerStats:    c.ImputerStats,
		ScalerCenter:    c.ScalerCenter,
		ScalerScale:     c.ScalerScale,
		SelectorSupport: c.SelectorSupport,
		deepHit:         c.DeepHit,
		deepHitCuts:     c.DeepHitCuts,
		logHazard:       c.LogHazard,
		logHazardCuts:   c.LogHazardCuts,
	}, nil
}

// Load reads all artifacts from dir and verifies their cross-consistency:
// feature ordering widths, selector range, network input/output widths
// against the time axes. Any failure is fatal for serving.
func Load(dir string, logger *logrus.Logger) (*Store, error) {
	var c Components

	var imp imputerArtifact
	if err := readJSON(filepath.Join(dir, ImputerFile), &imp); err != nil {
		return nil, domain.NewArtifactError(ImputerFile, "load failed", err)
	}
	c.FeatureNames = imp.FeatureNames
	c.ImputerStats = imp.Statistics

	var sc scalerArtifact
	if err := readJSON(filepath.Join(dir, ScalerFile), &sc); err != nil {
		return nil, domain.NewArtifactError(ScalerFile, "load failed", err)
	}
	c.ScalerCenter = sc.Center
	c.ScalerScale = sc.Scale

	var sel selectorArtifact
	if err := readJSON(filepath.Join(dir, SelectorFile), &sel); err != nil {
		return nil, domain.NewArtifactError(SelectorFile, "load failed", err)
	}
	c.SelectorSupport = sel.Support

	if err := readCuts(filepath.Join(dir, DeepHitCutsFile), &c.DeepHitCuts); err != nil {
		return nil, domain.NewArtifactError(DeepHitCutsFile, "load failed", err)
	}
	if err := readCuts(filepath.Join(dir, LogHazardCuts), &c.LogHazardCuts); err != nil {
		return nil, domain.NewArtifactError(LogHazardCuts, "load failed", err)
	}

	c.DeepHit = &Network{}
	if err := readJSON(filepath.Join(dir, DeepHitNetFile), c.DeepHit); err != nil {
		return nil, domain.NewArtifactError(DeepHitNetFile, "load failed", err)
	}
	c.LogHazard = &Network{}
	if err := readJSON(filepath.Join(dir, LogHazardNetFile), c.LogHazard); err != nil {
		return nil, domain.NewArtifactError(LogHazardNetFile, "load failed", err)
	}

	s, err := New(c)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"features":       len(s.FeatureNames),
		"selected":       len(s.SelectorSupport),
		"deephit_cuts":   len(s.deepHitCuts),
		"loghazard_cuts": len(s.logHazardCuts),
	}).Info("Loaded preprocessing artifacts and survival networks")

	return s, nil
}

// Model returns the network and discrete time axis for a model choice.
func (s *Store) Model(choice domain.ModelChoice) (*Network, []float64, error) {
	switch choice {
	case domain.ModelDeepHit:
		return s.deepHit, s.deepHitCuts, nil
	case domain.ModelLogHazard:
		return s.logHazard, s.logHazardCuts, nil
	default:
		return nil, nil, &domain.InvalidModelChoiceError{Choice: string(choice)}
	}
}

// FullWidth is the width of the pre-selection feature vector.
func (s *Store) FullWidth() int {
	return len(s.FeatureNames)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func readCuts(path string, dst *[]float64) error {
	var c cutsArtifact
	if err := readJSON(path, &c); err != nil {
		return err
	}
	*dst = c.Cuts
	return nil
}

func checkCuts(cuts []float64) error {
	if len(cuts) < 2 {
		return fmt.Errorf("time axis needs at least 2 cuts, got %d", len(cuts))
	}
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			return fmt.Errorf("time cuts not strictly increasing at index %d", i)
		}
	}
	return nil
}

// checkNetwork verifies a network's shape against the expected input
// width and time axis. The network may predict one fewer point than
// there are cuts (terminal interval boundary omitted).
func checkNetwork(n *Network, kind OutputKind, cuts []float64) error {
	if n == nil {
		return fmt.Errorf("network missing")
	}
	if n.Output == "" {
		n.Output = kind
	}
	if n.Output != kind {
		return fmt.Errorf("network declares output %q, expected %q", n.Output, kind)
	}
	if n.InFeatures != SelectedFeatures {
		return fmt.Errorf("network input width %d, expected %d", n.InFeatures, SelectedFeatures)
	}
	if n.OutFeatures != len(cuts) && n.OutFeatures != len(cuts)-1 {
		return fmt.Errorf("network output width %d incompatible with %d time cuts", n.OutFeatures, len(cuts))
	}
	return n.validate()
}
