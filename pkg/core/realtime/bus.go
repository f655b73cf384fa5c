package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/LENAX/agentflow/pkg/logging"
)

// TopicRunEvents 运行事件主题
const TopicRunEvents = "agentflow.run.events"

// 消息元数据键
const (
	MetadataRunID     = "run_id"
	MetadataEventType = "event_type"
)

// Bus 进程内事件总线（对外导出）
// 基于 watermill gochannel；Publish 非阻塞，由内部协程按顺序发布，
// 每条消息等待所有订阅者确认后再发布下一条，订阅者看到的顺序与发布顺序一致
type Bus struct {
	pubsub *gochannel.GoChannel
	queue  *EventQueue
	topic  string
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewBus 创建事件总线（对外导出）
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.Discard()
	}
	b := &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NopLogger{}),
		queue:  NewRelayQueue(0),
		topic:  TopicRunEvents,
		logger: logger,
		done:   make(chan struct{}),
	}
	go b.publishLoop()
	return b
}

// Publish 发布事件（非阻塞）
func (b *Bus) Publish(ev Event) {
	if _, ok := b.queue.Push(ev); !ok {
		b.logger.Debug("事件总线已关闭，丢弃事件", "run_id", ev.RunID, "type", ev.Type)
	}
}

// Subscribe 订阅事件（对外导出）
// filter 为 nil 时接收全部事件；ctx 结束后输出通道关闭
func (b *Bus) Subscribe(ctx context.Context, filter func(Event) bool) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("订阅事件失败: %w", err)
	}

	// 订阅端也使用无界队列：立即确认消息，慢消费者不会拖住发布方
	q := NewRelayQueue(16)
	go func() {
		defer q.Close()
		for {
			select {
			case <-ctx.Done():
				q.Abort()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal(msg.Payload, &ev); err != nil {
					b.logger.Warn("事件解码失败", "message_id", msg.UUID, "error", err)
					msg.Ack()
					continue
				}
				msg.Ack()
				if filter == nil || filter(ev) {
					q.Push(ev)
				}
			}
		}
	}()
	return q.Out(), nil
}

// ForRun 按运行ID过滤
func ForRun(runID string) func(Event) bool {
	return func(ev Event) bool { return ev.RunID == runID }
}

// OfTypes 按事件类型过滤
func OfTypes(types ...EventType) func(Event) bool {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(ev Event) bool { return set[ev.Type] }
}

// Close 发布完已入队事件后关闭总线
func (b *Bus) Close() error {
	var err error
	b.once.Do(func() {
		b.queue.Close()
		<-b.done
		err = b.pubsub.Close()
	})
	return err
}

func (b *Bus) publishLoop() {
	defer close(b.done)
	for ev := range b.queue.Out() {
		payload, err := json.Marshal(ev)
		if err != nil {
			b.logger.Warn("事件编码失败", "run_id", ev.RunID, "type", ev.Type, "error", err)
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(MetadataRunID, ev.RunID)
		msg.Metadata.Set(MetadataEventType, string(ev.Type))
		if err := b.pubsub.Publish(b.topic, msg); err != nil {
			b.logger.Warn("事件发布失败", "run_id", ev.RunID, "type", ev.Type, "error", err)
		}
	}
}
