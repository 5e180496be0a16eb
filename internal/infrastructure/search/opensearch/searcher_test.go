package opensearch

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

const twoHits = `{"took":3,"hits":{"total":{"value":2},"hits":[
	{"_score":12.5,"_source":{"id":"a","name":"Caffeine","synonyms":["guaranine"],"smiles":"CN1C=NC2=C1C(=O)N(C(=O)N2C)C","canonical_smiles":"Cn1cnc2c1c(=O)n(C)c(=O)n2C","formula":"C₈H₁₀N₄O₂","weight":194.19,"source":"pubchem","pubchem_cid":2519}},
	{"_score":3.1,"_source":{"id":"b","name":"Theobromine","canonical_smiles":"Cn1cnc2c1c(=O)[nH]c(=O)n2C"}}]}}`

func TestSearch(t *testing.T) {
	var dsl map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		productHeader(w)
		assert.Equal(t, "/test-compounds/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&dsl))
		w.Write([]byte(twoHits))
	})

	res, err := NewSearcher(c, nil).Search(context.Background(), "caffeine", 500)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.EqualValues(t, 3, res.TookMs)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "Caffeine", res.Hits[0].Document.Name)
	assert.Equal(t, 12.5, res.Hits[0].Score)
	assert.EqualValues(t, MaxSearchLimit, dsl["size"])
}

func TestSearch_Validation(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	_, err := NewSearcher(c, nil).Search(context.Background(), "  ", 10)
	assert.True(t, errors.IsValidation(err))
}

func TestSearch_MissingIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		productHeader(w)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"}}`))
	})
	res, err := NewSearcher(c, nil).Search(context.Background(), "aspirin", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearchByName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		productHeader(w)
		w.Write([]byte(twoHits))
	})

	comp, err := NewSearcher(c, nil).SearchByName(context.Background(), "Guaranine")
	require.NoError(t, err)
	assert.Equal(t, "Caffeine", comp.Name)
	assert.EqualValues(t, "a", comp.ID)
	assert.EqualValues(t, 2519, comp.PubChemCID)
	assert.Equal(t, []string{"guaranine"}, comp.Synonyms)
}

func TestSearchByName_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		productHeader(w)
		w.Write([]byte(`{"took":1,"hits":{"total":{"value":0},"hits":[]}}`))
	})
	_, err := NewSearcher(c, nil).SearchByName(context.Background(), "unobtainium")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCompoundNotFound))
}

func TestBuildNameDSL_LowercasesTerms(t *testing.T) {
	dsl := buildNameDSL("Aspirin")
	b, _ := json.Marshal(dsl)
	assert.Contains(t, string(b), `"value":"aspirin"`)
	assert.Contains(t, string(b), `"size":1`)
}
