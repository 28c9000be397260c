// Package feed publishes battle and game-over narratives for downstream
// consumers (spectator views, chat bridges).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

const (
	KindBattle   = "battle"
	KindGameOver = "gameOver"
)

type Event struct {
	RoomCode  string     `json:"roomCode"`
	Kind      string     `json:"kind"`
	Round     int        `json:"round"`
	Winner    string     `json:"winner,omitempty"`
	Narrative string     `json:"narrative,omitempty"`
	Scores    []pt.Score `json:"scores"`
	At        time.Time  `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards everything; used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafka writes to a single topic keyed by room code so one room's events
// stay ordered within a partition.
func NewKafka(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	sugar := log.Sugar()
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchSize:    1,
		ErrorLogger:  kafka.LoggerFunc(sugar.Errorf),
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("feed write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := newMessage(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", ev.Kind, ev.RoomCode, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func newMessage(ev Event) (kafka.Message, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode feed event: %w", err)
	}
	return kafka.Message{
		Key:     []byte(ev.RoomCode),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(ev.Kind)}},
		Time:    ev.At,
	}, nil
}
