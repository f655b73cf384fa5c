// Package dao 运行历史表的数据访问对象
package dao

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// RunRecord agentflow_run 表的数据访问对象
type RunRecord struct {
	ID         string         `db:"id"`
	WorkflowID string         `db:"workflow_id"`
	Status     string         `db:"status"`
	Output     sql.NullString `db:"output"` // JSON格式存储
	ErrorMsg   sql.NullString `db:"error_msg"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// SetOutput 以JSON保存运行输出
func (r *RunRecord) SetOutput(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化运行输出失败: %w", err)
	}
	r.Output = sql.NullString{String: string(data), Valid: true}
	return nil
}

// DecodeOutput 解析运行输出，无输出时返回 nil
func (r *RunRecord) DecodeOutput() (any, error) {
	if !r.Output.Valid {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(r.Output.String), &v); err != nil {
		return nil, fmt.Errorf("解析运行输出失败: %w", err)
	}
	return v, nil
}

// EventRecord agentflow_event 表的数据访问对象
// 主键为 (run_id, seq)
type EventRecord struct {
	RunID     string         `db:"run_id"`
	Seq       int64          `db:"seq"`
	EventID   string         `db:"event_id"`
	EventType string         `db:"event_type"`
	NodeID    sql.NullString `db:"node_id"`
	Payload   string         `db:"payload"` // 完整事件JSON
	CreatedAt time.Time      `db:"created_at"`
}

// FromEvent 由运行事件构造记录
func FromEvent(ev realtime.Event) (*EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	return &EventRecord{
		RunID:     ev.RunID,
		Seq:       ev.Sequence,
		EventID:   ev.ID,
		EventType: string(ev.Type),
		NodeID:    sql.NullString{String: ev.NodeID, Valid: ev.NodeID != ""},
		Payload:   string(payload),
		CreatedAt: ev.Timestamp,
	}, nil
}

// Event 还原运行事件
func (r *EventRecord) Event() (realtime.Event, error) {
	var ev realtime.Event
	if err := json.Unmarshal([]byte(r.Payload), &ev); err != nil {
		return ev, fmt.Errorf("解析事件失败: %w", err)
	}
	return ev, nil
}
