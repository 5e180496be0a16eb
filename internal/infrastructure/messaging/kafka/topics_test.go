package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

func testEvent() *chemical.CompoundAnalyzedEvent {
	return &chemical.CompoundAnalyzedEvent{
		EventID:          "ev-1",
		CompoundID:       "c-1",
		Name:             "Caffeine",
		Synonyms:         []string{"guaranine"},
		SMILES:           "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		CanonicalSMILES:  "Cn1cnc2c1c(=O)n(C)c(=O)n2C",
		MolecularFormula: "C₈H₁₀N₄O₂",
		MolecularWeight:  194.19,
		Source:           chemical.SourceDictionary,
		OccurredAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCompoundAnalyzedMessage_RoundTrip(t *testing.T) {
	for _, enc := range []string{EncodingJSON, EncodingProto} {
		t.Run(enc, func(t *testing.T) {
			pm, err := NewCompoundAnalyzedMessage(testEvent(), "req-9", enc)
			require.NoError(t, err)
			assert.Equal(t, TopicCompoundAnalyzed, pm.Topic)
			assert.Equal(t, "Cn1cnc2c1c(=O)n(C)c(=O)n2C", string(pm.Key))
			assert.Equal(t, EventTypeCompoundAnalyzed, pm.Headers["event_type"])
			assert.Equal(t, "req-9", pm.Headers["request_id"])

			msg := &Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
			env, err := MessageToEventEnvelope(msg)
			require.NoError(t, err)
			assert.Equal(t, "ev-1", env.EventID)
			assert.Equal(t, SchemaVersion, env.SchemaVersion)

			ev, err := DecodeCompoundAnalyzed(msg)
			require.NoError(t, err)
			assert.Equal(t, testEvent(), ev)
		})
	}
}

func TestToMessage_UnknownEncoding(t *testing.T) {
	env, err := NewEventEnvelope(EventTypeCompoundAnalyzed, "test", map[string]string{"a": "b"})
	require.NoError(t, err)
	_, err = env.ToMessage("t", "k", "avro")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDecodeCompoundAnalyzed_Errors(t *testing.T) {
	_, err := DecodeCompoundAnalyzed(&Message{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = DecodeCompoundAnalyzed(&Message{Value: []byte("{not json")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	_, err = DecodeCompoundAnalyzed(&Message{Value: []byte(`{"event_type":"other","payload":{}}`)})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDeadLetterTopic(t *testing.T) {
	assert.Equal(t, "chemsight.compound.analyzed.dlq", DeadLetterTopic(TopicCompoundAnalyzed))
}

type mockConn struct {
	mock.Mock
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	return m.Called(topics).Error(0)
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	args := m.Called(topics)
	return args.Get(0).([]kafka.Partition), args.Error(1)
}

func (m *mockConn) Close() error { return nil }

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := new(mockConn)
	conn.On("ReadPartitions", []string{TopicCompoundAnalyzed}).
		Return([]kafka.Partition{{Topic: TopicCompoundAnalyzed}}, nil)
	conn.On("ReadPartitions", []string{"chemsight.compound.analyzed.dlq"}).
		Return([]kafka.Partition(nil), errors.New("unknown topic"))
	conn.On("CreateTopics", mock.MatchedBy(func(ts []kafka.TopicConfig) bool {
		return len(ts) == 1 && ts[0].Topic == "chemsight.compound.analyzed.dlq" && ts[0].NumPartitions == 1
	})).Return(nil).Once()

	m := NewTopicManagerWithConn(conn, nil)
	require.NoError(t, m.EnsureTopics(context.Background(), DefaultTopics(0, 0)))
	conn.AssertExpectations(t)
}

func TestTopicManager_AlreadyExists(t *testing.T) {
	conn := new(mockConn)
	conn.On("ReadPartitions", mock.Anything).Return([]kafka.Partition(nil), errors.New("unknown topic"))
	conn.On("CreateTopics", mock.Anything).Return(kafka.TopicAlreadyExists)

	m := NewTopicManagerWithConn(conn, nil)
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x"}))
}
