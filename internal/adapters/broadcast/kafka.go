package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/types"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// DefaultKafkaTopic is the ball-by-ball log topic.
const DefaultKafkaTopic = "crease.balls"

// BallLogEntry is one record of the ball-by-ball log. Undo entries carry no
// ball and retract the latest entry of the match.
type BallLogEntry struct {
	MatchID string            `json:"matchId"`
	Op      types.Op          `json:"op"`
	Version uint64            `json:"version"`
	Ball    *model.BallRecord `json:"ball,omitempty"`
	Runs    int               `json:"runs"`
	Wickets int               `json:"wickets"`
	Overs   decimal.Decimal   `json:"overs"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher appends balls and undos to a topic keyed by match id, so a
// match's log stays in one partition and in order.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaWriter builds a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// Publish implements Publisher. Player and team changes are not logged.
func (p *KafkaPublisher) Publish(ctx context.Context, update model.ScoreUpdate) error { //nolint:gocritic // hugeParam: updates travel by value
	msg, ok, err := ballLogMessage(update, p.now())
	if err != nil || !ok {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func ballLogMessage(update model.ScoreUpdate, now time.Time) (kafka.Message, bool, error) { //nolint:gocritic // hugeParam: updates travel by value
	if !update.Op.Mutating() {
		return kafka.Message{}, false, nil
	}
	batting := update.Score.Batting()
	entry := BallLogEntry{
		MatchID: update.MatchID,
		Op:      update.Op,
		Version: update.Version,
		Ball:    update.Ball,
		Runs:    batting.Runs,
		Wickets: batting.Wickets,
		Overs:   batting.Overs,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return kafka.Message{}, false, fmt.Errorf("encode ball log %s: %w", update.MatchID, err)
	}
	return kafka.Message{
		Key:   []byte(update.MatchID),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(update.Op)},
		},
	}, true, nil
}
