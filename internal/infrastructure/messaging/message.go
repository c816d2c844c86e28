// Package messaging 基于 Redis Streams 的对话事件流
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// fieldData 流条目中承载消息 JSON 的字段
const fieldData = "data"

// Message 流上传输的信封，Payload 为具体事件
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 编码 payload 并生成信封
func NewMessage(id, msgType, sessionID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		SessionID: sessionID,
		Payload:   raw,
		Metadata:  map[string]string{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode 从流条目还原信封
func Decode(values map[string]any) (*Message, error) {
	raw, ok := values[fieldData].(string)
	if !ok {
		return nil, errors.New("stream entry has no data field")
	}
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}

func (m *Message) values() (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string]any{fieldData: string(data)}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	m.Metadata[key] = value
}

func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解析事件载荷
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has empty payload", m.ID)
	}
	return json.Unmarshal(m.Payload, v)
}

// Stream Redis Stream 名称
type Stream string

const StreamChatEvents Stream = "stream:chat:events"

// DLQStream 重试耗尽的消息写入的死信流
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费组名称
type ConsumerGroup string

const ConsumerGroupTurnMetrics ConsumerGroup = "cg-turn-metrics"

// BackoffConfig 待确认消息的重试退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// Delay 第 attempt 次重试前的等待时长，不超过 Max
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return c.Initial
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(c.Initial) * math.Pow(mult, float64(attempt))
	if c.Max > 0 && d > float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}
