package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

const (
	TopicCompoundAnalyzed = "chemsight.compound.analyzed"
	DeadLetterSuffix      = ".dlq"

	EventTypeCompoundAnalyzed = "compound.analyzed"
	SchemaVersion             = "v1"
)

// Encodings of event payloads on the wire.
const (
	EncodingJSON  = "json"
	EncodingProto = "proto"
)

const (
	headerEventType  = "event_type"
	headerEncoding   = "content_encoding"
	headerSchema     = "schema_version"
	headerRequestID  = "request_id"
	contentTypeJSON  = "application/json"
	contentTypeProto = "application/x-protobuf"
)

// DeadLetterTopic returns the dead-letter topic of topic.
func DeadLetterTopic(topic string) string { return topic + DeadLetterSuffix }

// EventEnvelope wraps every published event.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	RequestID     string          `json:"request_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope builds an envelope around payload.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload")
	}
	return nil
}

// ToMessage encodes the envelope for topic. The proto encoding carries the
// envelope as a google.protobuf.Struct.
func (e *EventEnvelope) ToMessage(topic, key, encoding string) (*ProducerMessage, error) {
	var (
		val []byte
		err error
	)
	switch encoding {
	case EncodingProto:
		val, err = e.marshalProto()
	case EncodingJSON, "":
		encoding = EncodingJSON
		val, err = json.Marshal(e)
	default:
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown event encoding %q", encoding)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}

	headers := map[string]string{
		headerEventType: e.EventType,
		headerEncoding:  contentType(encoding),
		headerSchema:    e.SchemaVersion,
	}
	if e.RequestID != "" {
		headers[headerRequestID] = e.RequestID
	}
	return &ProducerMessage{
		Topic:     topic,
		Key:       []byte(key),
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

func (e *EventEnvelope) marshalProto() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// MessageToEventEnvelope decodes a consumed message in either encoding.
func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	data := msg.Value
	if msg.Headers[headerEncoding] == contentTypeProto {
		var s structpb.Struct
		if err := proto.Unmarshal(msg.Value, &s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal proto envelope")
		}
		var err error
		if data, err = json.Marshal(s.AsMap()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to convert proto envelope")
		}
	}
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// NewCompoundAnalyzedMessage encodes ev for TopicCompoundAnalyzed, keyed by
// canonical SMILES so events of one structure share a partition.
func NewCompoundAnalyzedMessage(ev *chemical.CompoundAnalyzedEvent, requestID, encoding string) (*ProducerMessage, error) {
	env, err := NewEventEnvelope(EventTypeCompoundAnalyzed, "chemsight-api", ev)
	if err != nil {
		return nil, err
	}
	if ev.EventID != "" {
		env.EventID = ev.EventID
	}
	env.RequestID = requestID
	return env.ToMessage(TopicCompoundAnalyzed, ev.CanonicalSMILES, encoding)
}

// DecodeCompoundAnalyzed extracts the event from a consumed message.
func DecodeCompoundAnalyzed(msg *Message) (*chemical.CompoundAnalyzedEvent, error) {
	env, err := MessageToEventEnvelope(msg)
	if err != nil {
		return nil, err
	}
	if env.EventType != EventTypeCompoundAnalyzed {
		return nil, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
	}
	var ev chemical.CompoundAnalyzedEvent
	if err := env.DecodePayload(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func contentType(encoding string) string {
	if encoding == EncodingProto {
		return contentTypeProto
	}
	return contentTypeJSON
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates topics on startup when auto-creation is enabled.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessageQueueError, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, log), nil
}

func NewTopicManagerWithConn(conn ConnInterface, log logging.Logger) *TopicManager {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: log.Named("kafka-topics")}
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be > 0")
	}
	if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
		return nil
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}
	if err := m.conn.CreateTopics(kCfg); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		return errors.Wrapf(err, errors.CodeMessageQueueError, "failed to create topic %s", cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, t := range topics {
		if err := m.CreateTopic(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics returns the analysed-compound topic and its dead-letter
// topic.
func DefaultTopics(partitions, replication int) []TopicConfig {
	if partitions <= 0 {
		partitions = 3
	}
	if replication <= 0 {
		replication = 1
	}
	week := int64(7 * 24 * time.Hour / time.Millisecond)
	return []TopicConfig{
		{Name: TopicCompoundAnalyzed, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: DeadLetterTopic(TopicCompoundAnalyzed), NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 4 * week},
	}
}
