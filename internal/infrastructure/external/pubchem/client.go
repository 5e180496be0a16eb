// Package pubchem is a rate-limited client for the PubChem PUG-REST API.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

const (
	DefaultBaseURL   = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	DefaultTimeout   = 10 * time.Second
	// PUG-REST asks clients to stay under five requests per second.
	DefaultRateLimit = 5

	propertyList = "Title,IUPACName,CanonicalSMILES,IsomericSMILES,ConnectivitySMILES,SMILES,MolecularFormula,MolecularWeight,InChI"
)

// MetricsRecorder receives one observation per upstream call.
type MetricsRecorder interface {
	RecordExternalCall(service, outcome string, duration time.Duration)
}

// Client looks compounds up by name, SMILES and InChI.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       logging.Logger
	metrics      MetricsRecorder
	retries      int
	retryDelay   time.Duration
	withSynonyms bool
	maxSynonyms  int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m MetricsRecorder) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithRetry sets how many times 5xx and 503 ServerBusy responses are retried
// and the base delay, doubled per attempt.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = attempts
		c.retryDelay = delay
	}
}

// WithSynonyms makes lookups fetch up to max synonyms for each record.
func WithSynonyms(max int) ClientOption {
	return func(c *Client) {
		c.withSynonyms = max > 0
		c.maxSynonyms = max
	}
}

// NewClient builds a client from cfg. Zero values fall back to the public
// endpoint, a 10s timeout and 5 requests per second.
func NewClient(cfg config.PubChemConfig, log logging.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		logger:     log.Named("pubchem"),
		retries:    2,
		retryDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupByName resolves a compound name or CAS number.
func (c *Client) LookupByName(ctx context.Context, name string) (*chemical.PubChemRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.InvalidParam("name cannot be empty")
	}
	path := "/compound/name/" + url.PathEscape(name) + "/property/" + propertyList + "/JSON"
	return c.lookup(ctx, http.MethodGet, path, nil)
}

// LookupBySMILES resolves a structure. The SMILES travels in a form body so
// that '/' and '#' survive.
func (c *Client) LookupBySMILES(ctx context.Context, smiles string) (*chemical.PubChemRecord, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, errors.InvalidParam("smiles cannot be empty")
	}
	return c.lookup(ctx, http.MethodPost, "/compound/smiles/property/"+propertyList+"/JSON", url.Values{"smiles": {smiles}})
}

// LookupByInChI resolves a standard InChI string.
func (c *Client) LookupByInChI(ctx context.Context, inchi string) (*chemical.PubChemRecord, error) {
	inchi = strings.TrimSpace(inchi)
	if !strings.HasPrefix(inchi, "InChI=") {
		return nil, errors.New(errors.ErrCodeInvalidInChI, "InChI must start with InChI=")
	}
	return c.lookup(ctx, http.MethodPost, "/compound/inchi/property/"+propertyList+"/JSON", url.Values{"inchi": {inchi}})
}

// Synonyms returns the synonyms of cid, most common first.
func (c *Client) Synonyms(ctx context.Context, cid int64) ([]string, error) {
	var body synonymResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/compound/cid/%d/synonyms/JSON", cid), nil, &body); err != nil {
		return nil, err
	}
	if len(body.InformationList.Information) == 0 {
		return nil, nil
	}
	return body.InformationList.Information[0].Synonym, nil
}

func (c *Client) lookup(ctx context.Context, method, path string, form url.Values) (*chemical.PubChemRecord, error) {
	var body propertyResponse
	if err := c.do(ctx, method, path, form, &body); err != nil {
		return nil, err
	}
	if len(body.PropertyTable.Properties) == 0 {
		return nil, errors.New(errors.ErrCodeCompoundNotFound, "pubchem returned no properties")
	}
	rec := body.PropertyTable.Properties[0].record()
	if rec.CID == 0 {
		// CID 0 is how PubChem answers a structure it does not know.
		return nil, errors.New(errors.ErrCodeCompoundNotFound, "compound not in pubchem")
	}
	if c.withSynonyms {
		syns, err := c.Synonyms(ctx, rec.CID)
		if err != nil {
			c.logger.Debug("synonym lookup failed", logging.Int64("cid", rec.CID), logging.Err(err))
		} else {
			if len(syns) > c.maxSynonyms {
				syns = syns[:c.maxSynonyms]
			}
			rec.Synonyms = syns
		}
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	start := time.Now()
	err := c.doWithRetry(ctx, method, path, form, out)
	if c.metrics != nil {
		c.metrics.RecordExternalCall("pubchem", outcome(err), time.Since(start))
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsCode(err, errors.ErrCodeDataSourceRateLimited):
		return "rate_limited"
	}
	return "error"
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "pubchem request cancelled")
			case <-time.After(delay):
			}
		}
		retry, err := c.once(ctx, method, path, form, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		c.logger.Debug("retrying pubchem request", logging.String("path", path), logging.Int("attempt", attempt+1), logging.Err(err))
	}
	return lastErr
}

// once performs a single request and reports whether a failure is worth
// retrying.
func (c *Client) once(ctx context.Context, method, path string, form url.Values, out interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeDataSourceRateLimited, "pubchem rate limiter")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build pubchem request")
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrap(err, errors.ErrCodeTimeout, "pubchem request cancelled")
		}
		return true, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "pubchem request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, errors.New(errors.ErrCodeCompoundNotFound, "compound not in pubchem").WithDetail(faultMessage(resp.Body))
	case resp.StatusCode == http.StatusBadRequest:
		return false, errors.New(errors.ErrCodeDataSourceParseError, "pubchem rejected the request").WithDetail(faultMessage(resp.Body))
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return true, errors.New(errors.ErrCodeDataSourceRateLimited, "pubchem is throttling requests")
	default:
		return resp.StatusCode >= 500, errors.Newf(errors.ErrCodeDataSourceUnavailable, "pubchem returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "failed to decode pubchem response")
	}
	return false, nil
}

func faultMessage(r io.Reader) string {
	var f faultResponse
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&f); err != nil {
		return ""
	}
	return strings.TrimSpace(f.Fault.Code + ": " + f.Fault.Message)
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────────────────────────────────────

type propertyResponse struct {
	PropertyTable struct {
		Properties []properties `json:"Properties"`
	} `json:"PropertyTable"`
}

type properties struct {
	CID                int64      `json:"CID"`
	Title              string     `json:"Title"`
	IUPACName          string     `json:"IUPACName"`
	CanonicalSMILES    string     `json:"CanonicalSMILES"`
	IsomericSMILES     string     `json:"IsomericSMILES"`
	ConnectivitySMILES string     `json:"ConnectivitySMILES"`
	SMILES             string     `json:"SMILES"`
	MolecularFormula   string     `json:"MolecularFormula"`
	MolecularWeight    flexNumber `json:"MolecularWeight"`
	InChI              string     `json:"InChI"`
}

// record maps both the legacy (Canonical/Isomeric) and current
// (Connectivity/SMILES) property names.
func (p properties) record() *chemical.PubChemRecord {
	canonical := p.CanonicalSMILES
	if canonical == "" {
		canonical = p.ConnectivitySMILES
	}
	isomeric := p.IsomericSMILES
	if isomeric == "" {
		isomeric = p.SMILES
	}
	return &chemical.PubChemRecord{
		CID:              p.CID,
		Title:            p.Title,
		IUPACName:        p.IUPACName,
		CanonicalSMILES:  canonical,
		IsomericSMILES:   isomeric,
		MolecularFormula: p.MolecularFormula,
		MolecularWeight:  float64(p.MolecularWeight),
		InChI:            p.InChI,
	}
}

// flexNumber accepts PubChem weights sent either as numbers or as strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}

type synonymResponse struct {
	InformationList struct {
		Information []struct {
			CID     int64    `json:"CID"`
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

type faultResponse struct {
	Fault struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Fault"`
}
