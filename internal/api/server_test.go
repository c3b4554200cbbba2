package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/leukemia-survival-server/internal/artifacts"
	"github.com/leukemia-survival-server/internal/domain"
	"github.com/leukemia-survival-server/internal/service"
	"github.com/leukemia-survival-server/internal/trials"
)

// newTestServer wires a full server over fake artifacts and a temporary
// trial database, mirroring the production wiring in cmd/server.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := artifacts.New(testComponents())
	require.NoError(t, err)

	trialStore, err := trials.NewStore(filepath.Join(t.TempDir(), "trials.db"), 16, logger)
	require.NoError(t, err)
	t.Cleanup(func() { trialStore.Close() })

	recon := service.NewReconstructor(store, logger, service.WithSeed(1))
	predictor := service.NewPredictor(store, recon, logger)
	cohort := service.NewCohortProcessor(predictor, logger)
	simulator := service.NewTreatmentSimulator(predictor, logger)

	cfg := &domain.Config{
		Cohort:    domain.CohortConfig{MaxRows: 10, MinColumns: 2},
		RateLimit: domain.RateLimitConfig{Enabled: false},
		Logging:   domain.LoggingConfig{Level: "error"},
	}

	return NewServer(cfg, logger, predictor, cohort, simulator, trialStore)
}

func testComponents() artifacts.Components {
	names := []string{
		domain.FeatureAge,
		domain.FeatureRisk,
		domain.FeatureBMBP,
		domain.FeatureFLT3,
		domain.FeatureChemotherapy,
		domain.FeatureGender,
		domain.FeatureTransplant,
		domain.FeatureNPM1Alt,
		domain.FeatureCEBPA,
		domain.FeatureDNMT3A,
		domain.FeatureIDH1,
		domain.FeatureIDH2,
		domain.FeatureTargetedTherapy,
	}
	for i := len(names); i < 80; i++ {
		names = append(names, fmt.Sprintf("Gene_%03d", i))
	}
	n := len(names)

	stats := make([]float64, n)
	center := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	support := make([]int, artifacts.SelectedFeatures)
	for i := range support {
		support[i] = i
	}

	zeroNet := func(kind artifacts.OutputKind, out int) *artifacts.Network {
		w := make([][]float64, out)
		for i := range w {
			w[i] = make([]float64, artifacts.SelectedFeatures)
		}
		return &artifacts.Network{InFeatures: artifacts.SelectedFeatures, OutFeatures: out, Output: kind, OutputWeight: w}
	}
	axis := func(n int, step float64) []float64 {
		cuts := make([]float64, n)
		for i := range cuts {
			cuts[i] = float64(i) * step
		}
		return cuts
	}

	return artifacts.Components{
		FeatureNames:    names,
		ImputerStats:    stats,
		ScalerCenter:    center,
		ScalerScale:     scale,
		SelectorSupport: support,
		DeepHit:         zeroNet(artifacts.OutputPMF, 40),
		DeepHitCuts:     axis(40, 60),
		LogHazard:       zeroNet(artifacts.OutputHazard, 50),
		LogHazardCuts:   axis(51, 50),
	}
}

func postJSON(t *testing.T, s *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func postCSV(t *testing.T, s *Server, csv string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cohort.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cohort-upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func fullInputs() map[string]interface{} {
	return map[string]interface{}{
		"Age":                 45,
		"Risk_Classification": 1,
		"BMBP":                30,
		"FLT3.ITD":            0,
		"Chemotherapy":        1,
		"Gender":              0,
		"Transplant":          0,
	}
}

func strCSV(rows int) string {
	var b strings.Builder
	b.WriteString("Patient_ID,Age,Risk_Classification\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "P-%03d,%d,2\n", i, 40+i)
	}
	return b.String()
}
