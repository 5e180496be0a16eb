package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchHit is one matching compound document.
type SearchHit struct {
	Document CompoundDocument
	Score    float64
}

// SearchResult holds the hits of a search.
type SearchResult struct {
	Total  int64
	Hits   []SearchHit
	TookMs int64
}

// Searcher runs compound queries against the compound index.
type Searcher struct {
	client  *Client
	index   string
	timeout time.Duration
	logger  logging.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(client *Client, log logging.Logger) *Searcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Searcher{
		client:  client,
		index:   client.IndexName(CompoundIndex),
		timeout: 10 * time.Second,
		logger:  log.Named("searcher"),
	}
}

// Search runs a full-text query over names, synonyms, formulas and
// descriptions. Exact name matches rank first.
func (s *Searcher) Search(ctx context.Context, text string, limit int) (*SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New(errors.ErrCodeValidation, "search text is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.execute(ctx, buildSearchDSL(text, limit))
}

// SearchByName returns the best compound whose name or synonym matches
// name, tolerating small misspellings. No match is a not-found error.
func (s *Searcher) SearchByName(ctx context.Context, name string) (*molecule.Compound, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeValidation, "name is required")
	}
	res, err := s.execute(ctx, buildNameDSL(name))
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, errors.Newf(errors.ErrCodeCompoundNotFound, "no indexed compound named %q", name)
	}
	return res.Hits[0].Document.Compound(), nil
}

func (s *Searcher) execute(ctx context.Context, dsl map[string]interface{}) (*SearchResult, error) {
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query DSL")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.SearchRequest{Index: []string{s.index}, Body: bytes.NewReader(body)}
	start := time.Now()
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeTimeout, "search request timed out")
		}
		return nil, errors.Wrap(err, errors.CodeSearchError, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		// The index is created by the worker on first use.
		return &SearchResult{}, nil
	}
	if resp.IsError() {
		return nil, handleErrorResponse(resp, errors.New(errors.CodeSearchError, "search failed"))
	}

	result, err := parseSearchResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Search executed",
		logging.String("index", s.index),
		logging.Duration("took", time.Since(start)),
		logging.Int64("hits", result.Total))
	return result, nil
}

func parseSearchResponse(body io.Reader) (*SearchResult, error) {
	var raw struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64          `json:"_score"`
				Source CompoundDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}
	res := &SearchResult{Total: raw.Hits.Total.Value, TookMs: raw.Took, Hits: make([]SearchHit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		res.Hits = append(res.Hits, SearchHit{Document: h.Source, Score: h.Score})
	}
	return res, nil
}

func buildSearchDSL(text string, limit int) map[string]interface{} {
	lower := strings.ToLower(text)
	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"name.keyword": map[string]interface{}{"value": lower, "boost": 10}}},
					map[string]interface{}{"term": map[string]interface{}{"synonyms.keyword": map[string]interface{}{"value": lower, "boost": 5}}},
					map[string]interface{}{"term": map[string]interface{}{"formula": map[string]interface{}{"value": text, "boost": 5}}},
					map[string]interface{}{"multi_match": map[string]interface{}{
						"query":     text,
						"fields":    []string{"name^3", "name.prefix^2", "synonyms^2", "synonyms.prefix", "description"},
						"fuzziness": "AUTO",
					}},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

func buildNameDSL(name string) map[string]interface{} {
	lower := strings.ToLower(name)
	return map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"name.keyword": map[string]interface{}{"value": lower, "boost": 10}}},
					map[string]interface{}{"term": map[string]interface{}{"synonyms.keyword": map[string]interface{}{"value": lower, "boost": 8}}},
					map[string]interface{}{"multi_match": map[string]interface{}{
						"query":     name,
						"fields":    []string{"name^2", "synonyms"},
						"fuzziness": 1,
						"operator":  "and",
					}},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

// Compound converts the document back to a compound. Descriptors are not
// indexed; callers that need them re-derive them from the SMILES.
func (d CompoundDocument) Compound() *molecule.Compound {
	return &molecule.Compound{
		BaseEntity:      common.BaseEntity{ID: common.ID(d.ID)},
		Name:            d.Name,
		Synonyms:        d.Synonyms,
		SMILES:          d.SMILES,
		CanonicalSMILES: d.CanonicalSMILES,
		Formula:         d.Formula,
		Weight:          d.Weight,
		Description:     d.Description,
		Source:          d.Source,
		PubChemCID:      d.PubChemCID,
	}
}
