package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leukemia-survival-server/internal/domain"
)

// predictRequest is the single-patient prediction payload. Values arrive
// as JSON numbers or numeric strings depending on the frontend form.
type predictRequest struct {
	ModelType  string                 `json:"model_type"`
	UserInputs map[string]interface{} `json:"user_inputs"`
}

// simulationRequest is the treatment simulation payload.
type simulationRequest struct {
	UserInputs map[string]interface{} `json:"user_inputs"`
}

// handlePredict validates and coerces a prediction request and runs the
// adjustment engine.
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "code": domain.ErrCodeInvalidInput})
		return
	}

	var missing []string
	for _, param := range domain.RequiredFeatures {
		if _, ok := req.UserInputs[param]; !ok {
			missing = append(missing, param)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Missing required parameters: %s", strings.Join(missing, ", ")),
			"code":  domain.ErrCodeInvalidInput,
		})
		return
	}

	input, err := coerceInputs(req.UserInputs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeInvalidInput})
		return
	}

	choice, err := domain.ParseModelChoice(req.ModelType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeInvalidModel})
		return
	}

	result, err := s.predictor.Predict(input, choice)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction": result,
		"metrics":    domain.ComparativeMetrics,
	})
}

// handleTreatmentSimulation runs the counterfactual transplant comparison.
func (s *Server) handleTreatmentSimulation(c *gin.Context) {
	var req simulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "code": domain.ErrCodeInvalidInput})
		return
	}

	input, err := coerceInputs(req.UserInputs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeInvalidInput})
		return
	}

	result, err := s.simulator.Simulate(input)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCohortUpload parses an uploaded CSV, enforces the batch limits,
// and runs the cohort processor.
func (s *Server) handleCohortUpload(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload", "code": domain.ErrCodeInvalidInput})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed CSV file", "code": domain.ErrCodeInvalidInput})
		return
	}

	if len(records) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV must contain a header and at least one data row", "code": domain.ErrCodeInvalidInput})
		return
	}
	header := records[0]
	if len(header) < s.cfg.Cohort.MinColumns {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("CSV must have at least %d columns", s.cfg.Cohort.MinColumns),
			"code":  domain.ErrCodeInvalidInput,
		})
		return
	}
	dataRows := records[1:]
	if len(dataRows) > s.cfg.Cohort.MaxRows {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("batch exceeds the %d-row limit", s.cfg.Cohort.MaxRows),
			"code":  domain.ErrCodeInvalidInput,
		})
		return
	}

	rows := make([]map[string]string, 0, len(dataRows))
	for _, record := range dataRows {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	summary, err := s.cohort.Process(rows)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// handleTrialMatch filters the trial registry against a patient profile.
func (s *Server) handleTrialMatch(c *gin.Context) {
	var profile domain.TrialProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "code": domain.ErrCodeInvalidInput})
		return
	}

	matches, err := s.trials.Match(c.Request.Context(), profile)
	if err != nil {
		s.logger.WithError(err).Error("Trial match query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trial store unavailable", "code": domain.ErrCodeTrialStore})
		return
	}
	if matches == nil {
		matches = []domain.Trial{}
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}

// respondError maps typed core errors onto client-facing rejections.
func (s *Server) respondError(c *gin.Context, err error) {
	var invalidModel *domain.InvalidModelChoiceError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &invalidModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeInvalidModel})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeInvalidInput})
	case errors.Is(err, domain.ErrEmptyCohort):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.ErrCodeEmptyCohort})
	default:
		s.logger.WithError(err).Error("Prediction pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": domain.ErrCodeInternalServer})
	}
}

// coerceInputs converts the raw request values into a numeric
// PatientInput, rejecting anything non-coercible.
func coerceInputs(raw map[string]interface{}) (domain.PatientInput, error) {
	input := make(domain.PatientInput, len(raw))
	for key, value := range raw {
		v, err := toFloat(value)
		if err != nil {
			return nil, domain.NewValidationError(key, "must be a valid numerical value", value)
		}
		input[key] = v
	}
	return input, nil
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
}
