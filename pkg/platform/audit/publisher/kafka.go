package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "coalesce/pkg/platform/audit"
)

// Kafka publishes audit entries to a topic for downstream reporting tooling.
// Keyed by contact ID so all entries for one contact land in one partition,
// preserving per-contact ordering for consumers.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects to the given brokers. Callers own Close.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// wirePayload is the JSON structure on the topic. Field names are the
// contract with reporting consumers.
type wirePayload struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id"`
	ContactID string          `json:"contact_id,omitempty"`
	Decision  string          `json:"decision"`
	Actor     string          `json:"actor"`
	Timestamp string          `json:"timestamp"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Fields    []string        `json:"fields,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func (k *Kafka) Publish(ctx context.Context, entry audit.Entry) error {
	payload := wirePayload{
		ID:        entry.ID,
		BatchID:   entry.BatchID.String(),
		Decision:  string(entry.Decision),
		Actor:     entry.Actor,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Before:    entry.Before,
		After:     entry.After,
		Fields:    entry.Fields,
		Reason:    entry.Reason,
	}
	var key []byte
	if !entry.ContactID.IsNil() {
		payload.ContactID = entry.ContactID.String()
		key = []byte(payload.ContactID)
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{Topic: k.topic, Key: key, Value: value}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
