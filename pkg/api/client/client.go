// Package client AgentFlow HTTP API 的客户端
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// APIError 服务端返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound 运行、Workflow或审批请求不存在
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict 重复答复或运行ID冲突
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client API客户端（对外导出）
type Client struct {
	baseURL string
	http    *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New 创建客户端
// baseURL: 如 http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health 健康检查
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var out dto.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkflows 列出Workflow
func (c *Client) ListWorkflows(ctx context.Context) ([]dto.WorkflowSummary, error) {
	var out dto.ListResponse[dto.WorkflowSummary]
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetWorkflow 获取Workflow详情
func (c *Client) GetWorkflow(ctx context.Context, id string) (*dto.WorkflowDetail, error) {
	var out dto.WorkflowDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartRun 启动运行
func (c *Client) StartRun(ctx context.Context, workflowID string, input any) (*dto.StartRunResponse, error) {
	var out dto.StartRunResponse
	path := "/api/v1/workflows/" + url.PathEscape(workflowID) + "/runs"
	if err := c.do(ctx, http.MethodPost, path, dto.StartRunRequest{Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns 列出运行，status 为空表示全部
func (c *Client) ListRuns(ctx context.Context, status string) ([]dto.RunSummary, error) {
	path := "/api/v1/runs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out dto.ListResponse[dto.RunSummary]
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetRun 获取运行详情
func (c *Client) GetRun(ctx context.Context, runID string) (*dto.RunDetail, error) {
	var out dto.RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events 获取运行事件历史
func (c *Client) Events(ctx context.Context, runID string) ([]realtime.Event, error) {
	var out dto.EventsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID)+"/events", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// SendResponses 提交审批决定
func (c *Client) SendResponses(ctx context.Context, runID string, responses map[string]any) error {
	path := "/api/v1/runs/" + url.PathEscape(runID) + "/responses"
	return c.do(ctx, http.MethodPost, path, dto.SendResponsesRequest{Responses: responses}, nil)
}

// Cancel 取消运行
func (c *Client) Cancel(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(runID)+"/cancel", nil, nil)
}

// History 列出已落库的运行
func (c *Client) History(ctx context.Context) ([]dto.HistoryRecord, error) {
	var out dto.ListResponse[dto.HistoryRecord]
	if err := c.do(ctx, http.MethodGet, "/api/v1/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// StreamEvents 通过SSE接收运行事件，直到运行结束、ctx 结束或 fn 返回错误
func (c *Client) StreamEvents(ctx context.Context, runID string, fn func(realtime.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/runs/"+url.PathEscape(runID)+"/events?stream=true", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// 事件流不设整体超时
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("连接事件流失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "" && data.Len() > 0:
			var ev realtime.Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return fmt.Errorf("解析事件失败: %w", err)
			}
			data.Reset()
			if err := fn(ev); err != nil {
				return err
			}
			if ev.Type.IsTerminal() {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}

	envelope := dto.APIResponse[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func decodeError(resp *http.Response) error {
	var envelope dto.APIResponse[any]
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Message == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
}
