package task

import (
	"errors"
	"fmt"
)

// ApprovalRequest 执行函数发起的审批请求（对外导出）
// 执行函数返回它代替结果值，节点被挂起，直到外部提交审批决定
type ApprovalRequest struct {
	NodeID  string
	Payload any
}

func (r *ApprovalRequest) Error() string {
	return fmt.Sprintf("节点 %s 等待审批", r.NodeID)
}

// AsApprovalRequest 判断错误是否为审批请求（对外导出）
func AsApprovalRequest(err error) (*ApprovalRequest, bool) {
	var req *ApprovalRequest
	if errors.As(err, &req) {
		return req, true
	}
	return nil, false
}
