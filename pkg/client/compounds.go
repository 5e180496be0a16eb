package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// CompoundsClient covers analysis, measurement, validation and lookup.
type CompoundsClient struct {
	client *Client
}

// Analyze resolves a free-text query such as "caffeine" or "CCO" and returns
// its analysis. An unrecognised query is not an error: the result has
// IsDetected false.
func (cc *CompoundsClient) Analyze(ctx context.Context, query string) (*chemical.ChemicalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.InvalidParam("query is required")
	}
	var out chemical.ChemicalResult
	if err := cc.client.get(ctx, "/api/v1/analyze?q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeSMILES analyses a structure directly, optionally labelled name.
func (cc *CompoundsClient) AnalyzeSMILES(ctx context.Context, smiles, name string) (*chemical.ChemicalResult, error) {
	if strings.TrimSpace(smiles) == "" {
		return nil, errors.InvalidParam("smiles is required")
	}
	var out chemical.ChemicalResult
	req := &chemical.AnalyzeSMILESRequest{SMILES: smiles, Name: name}
	if err := cc.client.post(ctx, "/api/v1/analyze/smiles", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Measure requests a distance, angle or dihedral.
func (cc *CompoundsClient) Measure(ctx context.Context, req *chemical.MeasureRequest) (*chemical.Measurement, error) {
	if req == nil {
		return nil, errors.InvalidParam("request is required")
	}
	var out chemical.Measurement
	if err := cc.client.post(ctx, "/api/v1/measure", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *CompoundsClient) ValidateSMILES(ctx context.Context, smiles string) (*chemical.ValidateSMILESResponse, error) {
	var out chemical.ValidateSMILESResponse
	if err := cc.client.post(ctx, "/api/v1/smiles/validate", &chemical.ValidateSMILESRequest{SMILES: smiles}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a name lookup. limit <= 0 uses the server default.
func (cc *CompoundsClient) Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error) {
	q := url.Values{}
	q.Set("q", text)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out chemical.SearchResponse
	if err := cc.client.get(ctx, "/api/v1/compounds/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Similar finds structures close to smiles. k <= 0 uses the server default.
func (cc *CompoundsClient) Similar(ctx context.Context, smiles string, k int) (*chemical.SearchResponse, error) {
	q := url.Values{}
	q.Set("smiles", smiles)
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	var out chemical.SearchResponse
	if err := cc.client.get(ctx, "/api/v1/compounds/similar?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Complete sends text to the server's language model endpoint.
func (cc *CompoundsClient) Complete(ctx context.Context, text string) (*chemical.LLMResponse, error) {
	var out chemical.LLMResponse
	if err := cc.client.post(ctx, "/api/llm", &chemical.LLMRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Hello returns the server greeting; it doubles as a connectivity check.
func (cc *CompoundsClient) Hello(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := cc.client.get(ctx, "/api/hello", &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
