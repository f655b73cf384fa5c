package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/LENAX/agentflow/pkg/api/dto"
)

// RunConn 运行的WebSocket连接：接收事件，发送审批答复与取消指令
type RunConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Dial 建立运行的WebSocket连接
func (c *Client) Dial(ctx context.Context, runID string) (*RunConn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/runs/" + url.PathEscape(runID) + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("连接WebSocket失败: %w", err)
	}
	return &RunConn{conn: conn}, nil
}

// Next 读取下一条服务端消息；连接关闭时返回错误
func (rc *RunConn) Next() (dto.WSMessage, error) {
	var msg dto.WSMessage
	err := rc.conn.ReadJSON(&msg)
	return msg, err
}

// Respond 发送审批答复，结果以 ack/error 消息返回
func (rc *RunConn) Respond(responses map[string]any) error {
	return rc.send(dto.WSCommand{Action: "respond", Responses: responses})
}

// Cancel 发送取消指令
func (rc *RunConn) Cancel() error {
	return rc.send(dto.WSCommand{Action: "cancel"})
}

// Close 关闭连接
func (rc *RunConn) Close() error {
	rc.wmu.Lock()
	rc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	rc.wmu.Unlock()
	return rc.conn.Close()
}

func (rc *RunConn) send(cmd dto.WSCommand) error {
	rc.wmu.Lock()
	defer rc.wmu.Unlock()
	return rc.conn.WriteJSON(cmd)
}
