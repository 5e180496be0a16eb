package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// CompoundIndex is the unprefixed name of the compound index.
const CompoundIndex = "compounds"

var (
	ErrIndexCreationFailed = errors.New(errors.ErrCodeExternalService, "index creation failed")
	ErrDocumentIndexFailed = errors.New(errors.ErrCodeExternalService, "document index failed")
)

// CompoundDocument is the indexed form of a compound.
type CompoundDocument struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Synonyms        []string  `json:"synonyms,omitempty"`
	SMILES          string    `json:"smiles"`
	CanonicalSMILES string    `json:"canonical_smiles"`
	Formula         string    `json:"formula"`
	Weight          float64   `json:"weight"`
	Description     string    `json:"description,omitempty"`
	Source          string    `json:"source"`
	PubChemCID      int64     `json:"pubchem_cid,omitempty"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// DocumentFromCompound builds the indexed form of c.
func DocumentFromCompound(c *molecule.Compound) CompoundDocument {
	return CompoundDocument{
		ID:              string(c.ID),
		Name:            c.Name,
		Synonyms:        c.Synonyms,
		SMILES:          c.SMILES,
		CanonicalSMILES: c.CanonicalSMILES,
		Formula:         c.Formula,
		Weight:          c.Weight,
		Description:     c.Description,
		Source:          c.Source,
		PubChemCID:      c.PubChemCID,
		IndexedAt:       time.Now().UTC(),
	}
}

// BulkResult summarises a bulk request.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// BulkItemError describes a failed bulk item.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}

// Indexer manages the compound index. Documents are keyed by canonical
// SMILES, so re-indexing a structure overwrites it.
type Indexer struct {
	client        *Client
	index         string
	refreshPolicy string
	logger        logging.Logger
}

// NewIndexer creates an Indexer. refresh is the refresh policy passed to
// index requests ("false", "true" or "wait_for").
func NewIndexer(client *Client, refresh string, log logging.Logger) *Indexer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if refresh == "" {
		refresh = "false"
	}
	return &Indexer{
		client:        client,
		index:         client.IndexName(CompoundIndex),
		refreshPolicy: refresh,
		logger:        log.Named("indexer"),
	}
}

// Index returns the full index name.
func (i *Indexer) Index() string { return i.index }

// EnsureIndex creates the compound index when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(CompoundIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	req := opensearchapi.IndicesCreateRequest{Index: i.index, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create index")
	}
	defer resp.Body.Close()

	// A concurrent creator wins the race with resource_already_exists.
	if resp.StatusCode == 400 {
		if exists, _ := i.IndexExists(ctx); exists {
			return nil
		}
	}
	if resp.IsError() {
		return handleErrorResponse(resp, ErrIndexCreationFailed)
	}
	i.logger.Info("Index created", logging.String("index", i.index))
	return nil
}

// IndexExists checks whether the compound index exists.
func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{i.index}}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to check index existence")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 200:
		return true, nil
	case resp.StatusCode == 404:
		return false, nil
	default:
		return false, handleErrorResponse(resp, errors.New(errors.ErrCodeExternalService, "check index existence failed"))
	}
}

// IndexCompound indexes a single document.
func (i *Indexer) IndexCompound(ctx context.Context, doc CompoundDocument) error {
	if doc.CanonicalSMILES == "" {
		return errors.New(errors.ErrCodeValidation, "document has no canonical smiles")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal document")
	}

	req := opensearchapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.CanonicalSMILES,
		Body:       bytes.NewReader(body),
		Refresh:    i.refreshPolicy,
	}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to index document")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return handleErrorResponse(resp, ErrDocumentIndexFailed)
	}
	i.logger.Debug("Compound indexed", logging.String("name", doc.Name))
	return nil
}

// BulkIndex indexes docs in one request and reports per-item failures.
func (i *Indexer) BulkIndex(ctx context.Context, docs []CompoundDocument) (*BulkResult, error) {
	result := &BulkResult{}
	if len(docs) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		src, err := json.Marshal(doc)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{DocID: doc.CanonicalSMILES, ErrorType: "serialization_error", Reason: err.Error()})
			continue
		}
		meta, _ := json.Marshal(map[string]interface{}{
			"index": map[string]string{"_index": i.index, "_id": doc.CanonicalSMILES},
		})
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(src)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return result, nil
	}

	req := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: i.refreshPolicy}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeExternalService, "bulk request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return result, handleErrorResponse(resp, errors.New(errors.ErrCodeExternalService, "bulk request failed"))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return result, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}
	for _, item := range bulkResp.Items {
		for _, r := range item {
			if r.Error != nil {
				result.Failed++
				result.Errors = append(result.Errors, BulkItemError{DocID: r.ID, ErrorType: r.Error.Type, Reason: r.Error.Reason})
			} else {
				result.Succeeded++
			}
		}
	}
	return result, nil
}

// DeleteCompound removes the document of a structure. Missing documents
// are ignored.
func (i *Indexer) DeleteCompound(ctx context.Context, canonicalSMILES string) error {
	req := opensearchapi.DeleteRequest{Index: i.index, DocumentID: canonicalSMILES, Refresh: i.refreshPolicy}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to delete document")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil
	}
	if resp.IsError() {
		return handleErrorResponse(resp, errors.New(errors.ErrCodeExternalService, "delete document failed"))
	}
	return nil
}

func handleErrorResponse(resp *opensearchapi.Response, defaultErr error) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.Wrapf(defaultErr, errors.ErrCodeExternalService, "opensearch error: %s - %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return errors.Wrap(defaultErr, errors.ErrCodeExternalService, fmt.Sprintf("opensearch error status: %d", resp.StatusCode))
}

// CompoundIndexMapping is the settings and mapping of the compound index.
// Names and synonyms get an edge n-gram subfield for prefix matching.
func CompoundIndexMapping() map[string]interface{} {
	text := func() map[string]interface{} {
		return map[string]interface{}{
			"type": "text",
			"fields": map[string]interface{}{
				"keyword": map[string]interface{}{"type": "keyword", "normalizer": "lowercase"},
				"prefix":  map[string]interface{}{"type": "text", "analyzer": "name_prefix", "search_analyzer": "standard"},
			},
		}
	}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
			"analysis": map[string]interface{}{
				"normalizer": map[string]interface{}{
					"lowercase": map[string]interface{}{"type": "custom", "filter": []string{"lowercase"}},
				},
				"tokenizer": map[string]interface{}{
					"edge_ngram": map[string]interface{}{"type": "edge_ngram", "min_gram": 2, "max_gram": 20, "token_chars": []string{"letter", "digit"}},
				},
				"analyzer": map[string]interface{}{
					"name_prefix": map[string]interface{}{"type": "custom", "tokenizer": "edge_ngram", "filter": []string{"lowercase"}},
				},
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":               map[string]interface{}{"type": "keyword"},
				"name":             text(),
				"synonyms":         text(),
				"smiles":           map[string]interface{}{"type": "keyword"},
				"canonical_smiles": map[string]interface{}{"type": "keyword"},
				"formula":          map[string]interface{}{"type": "keyword"},
				"weight":           map[string]interface{}{"type": "float"},
				"description":      map[string]interface{}{"type": "text"},
				"source":           map[string]interface{}{"type": "keyword"},
				"pubchem_cid":      map[string]interface{}{"type": "long"},
				"indexed_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
}
