package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// AnalysisService is the application service behind the analysis endpoints.
type AnalysisService interface {
	Analyze(ctx context.Context, query string) (*chemical.ChemicalResult, error)
	AnalyzeSMILES(ctx context.Context, smiles, name string) (*chemical.ChemicalResult, error)
	Measure(ctx context.Context, req *chemical.MeasureRequest) (*chemical.Measurement, error)
	ValidateSMILES(smiles string) *chemical.ValidateSMILESResponse
	Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error)
	Similar(ctx context.Context, smiles string, topK int) (*chemical.SearchResponse, error)
	Complete(ctx context.Context, text string) (*chemical.LLMResponse, error)
}

// HelloMessage is the greeting of GET /api/hello.
const HelloMessage = "Hello from ChemSight!"

// AnalysisHandler serves compound analysis, lookup and measurement.
type AnalysisHandler struct {
	svc AnalysisService
}

func NewAnalysisHandler(svc AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// Analyze handles GET /api/v1/analyze?q= and its /results alias.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		writeAppError(c, errors.InvalidParam("query parameter q is required"))
		return
	}
	res, err := h.svc.Analyze(c.Request.Context(), q)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AnalyzeSMILES handles POST /api/v1/analyze/smiles.
func (h *AnalysisHandler) AnalyzeSMILES(c *gin.Context) {
	var req chemical.AnalyzeSMILESRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.svc.AnalyzeSMILES(c.Request.Context(), req.SMILES, req.Name)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Measure handles POST /api/v1/measure.
func (h *AnalysisHandler) Measure(c *gin.Context) {
	var req chemical.MeasureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := h.svc.Measure(c.Request.Context(), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ValidateSMILES handles POST /api/v1/smiles/validate. Invalid SMILES is a
// successful response with valid=false.
func (h *AnalysisHandler) ValidateSMILES(c *gin.Context) {
	var req chemical.ValidateSMILESRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.ValidateSMILES(req.SMILES))
}

// Search handles GET /api/v1/compounds/search?q=&limit=.
func (h *AnalysisHandler) Search(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeAppError(c, err)
		return
	}
	res, err := h.svc.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Similar handles GET /api/v1/compounds/similar?smiles=&k=.
func (h *AnalysisHandler) Similar(c *gin.Context) {
	k, err := queryInt(c, "k", 0)
	if err != nil {
		writeAppError(c, err)
		return
	}
	res, err := h.svc.Similar(c.Request.Context(), c.Query("smiles"), k)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Hello handles GET /api/hello.
func (h *AnalysisHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": HelloMessage})
}

// LLM handles POST /api/llm.
func (h *AnalysisHandler) LLM(c *gin.Context) {
	var req chemical.LLMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.svc.Complete(c.Request.Context(), req.Text)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
