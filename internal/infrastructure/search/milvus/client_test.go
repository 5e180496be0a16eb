package milvus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
)

// fakeMilvus implements the parts of client.Client the package calls.
type fakeMilvus struct {
	client.Client

	mu          sync.Mutex
	healthErr   error
	unhealthy   bool
	collections map[string]bool
	created     *entity.Schema
	indexField  string
	loaded      []string
	upserted    []entity.Column
	searchRes   []client.SearchResult
	searchErr   error
	searchArgs  struct {
		metric entity.MetricType
		topK   int
		field  string
	}
	deleteExpr string
	closed     int
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{collections: map[string]bool{}}
}

func (f *fakeMilvus) CheckHealth(context.Context) (*entity.MilvusState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &entity.MilvusState{IsHealthy: !f.unhealthy}, nil
}

func (f *fakeMilvus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeMilvus) HasCollection(_ context.Context, name string) (bool, error) {
	return f.collections[name], nil
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	f.created = schema
	f.collections[schema.CollectionName] = true
	return nil
}

func (f *fakeMilvus) CreateIndex(_ context.Context, _ string, field string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	f.indexField = field
	return nil
}

func (f *fakeMilvus) LoadCollection(_ context.Context, name string, _ bool, _ ...client.LoadCollectionOption) error {
	f.loaded = append(f.loaded, name)
	return nil
}

func (f *fakeMilvus) Upsert(_ context.Context, _ string, _ string, cols ...entity.Column) (entity.Column, error) {
	f.upserted = cols
	return cols[0], nil
}

func (f *fakeMilvus) Search(_ context.Context, _ string, _ []string, _ string, _ []string, _ []entity.Vector,
	field string, metric entity.MetricType, topK int, _ entity.SearchParam, _ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchArgs.metric = metric
	f.searchArgs.topK = topK
	f.searchArgs.field = field
	return f.searchRes, f.searchErr
}

func (f *fakeMilvus) Delete(_ context.Context, _ string, _ string, expr string) error {
	f.deleteExpr = expr
	return nil
}

func withFactory(t *testing.T, fn MilvusClientFactory) {
	t.Helper()
	orig := milvusNewClient
	milvusNewClient = fn
	t.Cleanup(func() { milvusNewClient = orig })
}

func newTestClient(f *fakeMilvus) *Client {
	return &Client{milvusClient: f, logger: logging.NewNopLogger(), cancel: func() {}}
}

func TestNewClient_Success(t *testing.T) {
	fake := newFakeMilvus()
	var gotCfg client.Config
	withFactory(t, func(_ context.Context, conf client.Config) (client.Client, error) {
		gotCfg = conf
		return fake, nil
	})

	c, err := NewClient(config.MilvusConfig{Addr: "localhost:19530"}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsHealthy())
	assert.Equal(t, "default", gotCfg.DBName)
	assert.NotEmpty(t, gotCfg.DialOptions)
	require.NoError(t, c.Close())
	assert.Equal(t, 1, fake.closed)
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(config.MilvusConfig{}, nil)
	assert.Equal(t, ErrInvalidConfig, err)

	withFactory(t, func(context.Context, client.Config) (client.Client, error) {
		return nil, errors.New("dial failed")
	})
	_, err = NewClient(config.MilvusConfig{Addr: "localhost:19530"}, nil)
	assert.Error(t, err)

	fake := newFakeMilvus()
	fake.unhealthy = true
	withFactory(t, func(context.Context, client.Config) (client.Client, error) { return fake, nil })
	_, err = NewClient(config.MilvusConfig{Addr: "localhost:19530"}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, fake.closed)
}

func TestCheckAndRecover_Reconnects(t *testing.T) {
	broken := newFakeMilvus()
	broken.healthErr = errors.New("unavailable")
	fresh := newFakeMilvus()
	withFactory(t, func(context.Context, client.Config) (client.Client, error) { return fresh, nil })

	c := newTestClient(broken)
	c.config = config.MilvusConfig{Addr: "localhost:19530"}
	failures := 0
	for i := 0; i < reconnectAfter; i++ {
		assert.Error(t, c.checkAndRecover(context.Background(), &failures))
	}
	assert.Equal(t, 0, failures)
	assert.Same(t, fresh, c.GetMilvusClient().(*fakeMilvus))
	assert.Equal(t, 1, broken.closed)

	require.NoError(t, c.checkAndRecover(context.Background(), &failures))
	assert.True(t, c.IsHealthy())
}

func TestClient_CloseTwice(t *testing.T) {
	fake := newFakeMilvus()
	c := newTestClient(fake)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, fake.closed)
	assert.Equal(t, ErrConnectionFailed, c.CheckHealth(context.Background()))
}
