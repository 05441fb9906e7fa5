package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

type Producer interface {
	PublishCommandAudit(ctx context.Context, event kafka.CommandAuditEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishCommandAudit(ctx context.Context, event kafka.CommandAuditEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishCommandAudit: %v", err)
		return err
	}

	key := event.DoctorID
	if key == "" {
		key = event.TokenID
	}

	msg := &sarama.ProducerMessage{
		Topic: kafka.TopicCommandAudit,
		Key:   sarama.StringEncoder(key), // Partition by doctor for ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(event.Timestamp.Format(time.RFC3339)),
			},
			{
				Key:   []byte("command"),
				Value: []byte(event.Command),
			},
		},
	}

	if _, _, err = p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishCommandAudit: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
