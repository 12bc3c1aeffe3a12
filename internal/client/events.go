// 분석 완료 이벤트를 Kafka 호환 브로커(Redpanda 등)로 발행
//
// 환경변수:
//   - EVENT_BROKERS: 브로커 주소 목록 (쉼표 구분, 비어 있으면 비활성)
//   - EVENT_TOPIC: 토픽 이름 (기본 mcp.analysis.completed)
//   - EVENT_TIMEOUT: 발행 1건 상한 (초, 기본 10)

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer - topic/key/value 레코드 1건 동기 발행
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close()
}

// KafkaProducer - franz-go 기반 Producer
type KafkaProducer struct {
	client *kgo.Client
	mu     sync.RWMutex
	closed bool
}

const defaultEventTimeout = 10 * time.Second

// NewKafkaProducer - timeout이 지나면 브로커가 응답하지 않아도 레코드 실패로 끝남
// (kgo 기본값은 무한 재시도)
func NewKafkaProducer(brokers []string, timeout time.Duration) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required: %w", ErrNotConfigured)
	}
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	// kgo는 1초 미만 record timeout을 거부
	timeout = max(timeout, time.Second)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(timeout),
		kgo.ProduceRequestTimeout(timeout),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	return &KafkaProducer{client: client}, nil
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("producer is closed")
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.client.Close()
}

// EventPublisher - AnalysisCompletedEvent를 JSON으로 직렬화해 발행
// key는 job id (같은 job 이벤트는 같은 파티션)
type EventPublisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
}

func NewEventPublisher(producer Producer, cfg config.EventsConfig) *EventPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = "mcp.analysis.completed"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	return &EventPublisher{producer: producer, topic: topic, timeout: timeout}
}

func (p *EventPublisher) Name() string {
	return "events"
}

func (p *EventPublisher) PublishAnalysis(ctx context.Context, event model.AnalysisCompletedEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("event producer: %w", ErrNotConfigured)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.producer.Publish(ctx, p.topic, event.JobID, value)
}

func (p *EventPublisher) Close() {
	if p != nil && p.producer != nil {
		p.producer.Close()
	}
}
