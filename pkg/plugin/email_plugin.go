package plugin

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/logging"
)

// EmailPluginName 邮件插件名称
const EmailPluginName = "email"

// SendMailFunc 邮件发送函数签名，与 smtp.SendMail 一致
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailPlugin 邮件通知插件（对外导出）
// 审批请求通知审批人，运行失败通知值班人员
type EmailPlugin struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	to       []string
	enabled  bool
	sendMail SendMailFunc
	logger   *slog.Logger
}

// NewEmailPlugin 创建邮件通知插件（对外导出）
func NewEmailPlugin(logger *slog.Logger) *EmailPlugin {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EmailPlugin{sendMail: smtp.SendMail, logger: logger}
}

// WithSender 替换发送函数（测试或自定义通道）
func (e *EmailPlugin) WithSender(fn SendMailFunc) *EmailPlugin {
	e.sendMail = fn
	return e
}

// Name 插件名称
func (e *EmailPlugin) Name() string {
	return EmailPluginName
}

// Init 初始化插件
// params: smtp_host, smtp_port, username, password, from, to（逗号分隔）
func (e *EmailPlugin) Init(params map[string]string) error {
	e.smtpHost = params["smtp_host"]
	if e.smtpHost == "" {
		return fmt.Errorf("smtp_host参数不能为空")
	}

	e.smtpPort = 25
	if portStr := params["smtp_port"]; portStr != "" {
		if _, err := fmt.Sscanf(portStr, "%d", &e.smtpPort); err != nil {
			return fmt.Errorf("smtp_port参数格式错误: %w", err)
		}
	}

	e.username = params["username"]
	e.password = params["password"]

	e.from = params["from"]
	if e.from == "" {
		return fmt.Errorf("from参数不能为空")
	}

	toStr := params["to"]
	if toStr == "" {
		return fmt.Errorf("to参数不能为空")
	}
	e.to = nil
	for _, addr := range strings.Split(toStr, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			e.to = append(e.to, addr)
		}
	}

	e.enabled = true
	e.logger.Info("✅ [EmailPlugin] 初始化完成", "smtp", fmt.Sprintf("%s:%d", e.smtpHost, e.smtpPort), "from", e.from, "to", e.to)
	return nil
}

// Execute 发送通知邮件
func (e *EmailPlugin) Execute(ctx context.Context, data Data) error {
	if !e.enabled {
		return fmt.Errorf("邮件插件未初始化")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := buildSubject(data)
	body := buildBody(data)
	if err := e.send(subject, body); err != nil {
		e.logger.Error("❌ [EmailPlugin] 发送邮件失败", "run_id", data.RunID, "error", err)
		return err
	}
	e.logger.Info("✅ [EmailPlugin] 邮件发送成功", "event", data.Event, "subject", subject)
	return nil
}

func buildSubject(data Data) string {
	switch data.Event {
	case realtime.EventApprovalRequested:
		return fmt.Sprintf("[待审批] %s - 节点 %s", data.WorkflowID, data.NodeID)
	case realtime.EventRunFailed:
		return fmt.Sprintf("[运行失败] %s - %s", data.WorkflowID, data.RunID)
	case realtime.EventRunCancelled:
		return fmt.Sprintf("[运行取消] %s - %s", data.WorkflowID, data.RunID)
	case realtime.EventRunCompleted:
		return fmt.Sprintf("[运行完成] %s - %s", data.WorkflowID, data.RunID)
	case realtime.EventNodeFailed:
		return fmt.Sprintf("[节点失败] %s - %s", data.WorkflowID, data.NodeID)
	default:
		return fmt.Sprintf("[系统通知] %s", data.Event)
	}
}

func buildBody(data Data) string {
	var body strings.Builder
	fmt.Fprintf(&body, "事件类型: %s\n", data.Event)
	fmt.Fprintf(&body, "Workflow ID: %s\n", data.WorkflowID)
	fmt.Fprintf(&body, "Run ID: %s\n", data.RunID)
	if data.NodeID != "" {
		fmt.Fprintf(&body, "节点: %s\n", data.NodeID)
	}
	if data.Error != "" {
		fmt.Fprintf(&body, "错误信息: %s\n", data.Error)
	}
	if data.Request != nil {
		fmt.Fprintf(&body, "\n审批请求ID: %s\n", data.Request.RequestID)
		if payload, err := json.MarshalIndent(data.Request.Payload, "", "  "); err == nil {
			fmt.Fprintf(&body, "审批内容:\n%s\n", payload)
		}
	}
	return body.String()
}

func (e *EmailPlugin) send(subject, body string) error {
	message := e.buildMessage(subject, body)
	addr := fmt.Sprintf("%s:%d", e.smtpHost, e.smtpPort)

	var auth smtp.Auth
	if e.username != "" && e.password != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.smtpHost)
		// 465 端口需要先建立TLS连接
		if e.smtpPort == 465 {
			return e.sendTLS(addr, auth, message)
		}
	}
	return e.sendMail(addr, auth, e.from, e.to, []byte(message))
}

func (e *EmailPlugin) sendTLS(addr string, auth smtp.Auth, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.smtpHost})
	if err != nil {
		return fmt.Errorf("TLS连接失败: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}
	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	for _, to := range e.to {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("设置收件人失败: %w", err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("获取数据写入器失败: %w", err)
	}
	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("关闭数据写入器失败: %w", err)
	}
	return client.Quit()
}

func (e *EmailPlugin) buildMessage(subject, body string) string {
	var message strings.Builder
	fmt.Fprintf(&message, "From: %s\r\n", e.from)
	fmt.Fprintf(&message, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&message, "Subject: %s\r\n", subject)
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}
