package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/pkg/logger"
)

// RowBatch 是发布到 Kafka 的消息体：一个钱包一次扫描的最终记账行。
type RowBatch struct {
	Owner       string       `json:"owner"`
	GeneratedAt int64        `json:"generatedAt"`
	Partial     bool         `json:"partial"`
	Rows        []rowPayload `json:"rows"`
}

type rowPayload struct {
	Timestamp   string `json:"timestamp"`
	Kind        string `json:"kind"`
	AmountIn    string `json:"amountIn,omitempty"`
	CurrencyIn  string `json:"currencyIn,omitempty"`
	AmountOut   string `json:"amountOut,omitempty"`
	CurrencyOut string `json:"currencyOut,omitempty"`
	Fee         string `json:"fee,omitempty"`
	FeeCurrency string `json:"feeCurrency,omitempty"`
	Market      string `json:"market"`
	Note        string `json:"note"`
}

// Publisher 把扫描产出的行批量发布到单个 topic，按 owner 做分区 key。
type Publisher struct {
	producer *kafka.Producer
	topic    string
	timeout  time.Duration
}

func NewPublisher(producer *kafka.Producer, topic string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{producer: producer, topic: topic, timeout: timeout}
}

// Publish 发布一个行批次并等待投递确认。
func (p *Publisher) Publish(ctx context.Context, owner string, rows []domain.Row, partial bool) error {
	batch := RowBatch{
		Owner:       owner,
		GeneratedAt: time.Now().Unix(),
		Partial:     partial,
		Rows:        make([]rowPayload, 0, len(rows)),
	}
	for i := range rows {
		r := &rows[i]
		batch.Rows = append(batch.Rows, rowPayload{
			Timestamp:   r.Timestamp,
			Kind:        string(r.Kind),
			AmountIn:    nonZero(r.AmountIn.String(), r.AmountIn.IsZero()),
			CurrencyIn:  r.CurrencyIn,
			AmountOut:   nonZero(r.AmountOut.String(), r.AmountOut.IsZero()),
			CurrencyOut: r.CurrencyOut,
			Fee:         nonZero(r.Fee.String(), r.Fee.IsZero()),
			FeeCurrency: r.FeeCurrency,
			Market:      r.Market,
			Note:        r.Note,
		})
	}

	value, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal row batch: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(owner),
		Value:          value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce row batch: %w", err)
	}

	select {
	case e, ok := <-deliveryChan:
		if !ok {
			return fmt.Errorf("delivery channel closed unexpectedly")
		}
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("invalid delivery event type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("deliver row batch: %w", msg.TopicPartition.Error)
		}
		logger.Infof("[mq] published %d rows for %s to %s", len(rows), owner, p.topic)
		return nil
	case <-time.After(p.timeout):
		go drain(deliveryChan)
		return fmt.Errorf("delivery timeout (>%v)", p.timeout)
	case <-ctx.Done():
		go drain(deliveryChan)
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	}
}

func (p *Publisher) Close() {
	p.producer.Flush(int(p.timeout.Milliseconds()))
	p.producer.Close()
}

func nonZero(s string, zero bool) string {
	if zero {
		return ""
	}
	return s
}

// drain 确保超时 / 取消后投递回调仍有人收，避免 Kafka 内部阻塞。
func drain(ch <-chan kafka.Event) {
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
	}
}
