package opscopilot

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/LENAX/agentflow/pkg/core/cache"
)

// MemoryServiceName OpsMemory 注入执行函数时使用的服务名
const MemoryServiceName = "ops_memory"

// DefaultLanguage 默认客户沟通语言
const DefaultLanguage = "hebrew"

// DefaultMemoryTTL 上下文记忆有效期
const DefaultMemoryTTL = 30 * time.Minute

const (
	keyLanguage     = "preferred_language"
	keyLastCustomer = "last_customer"
	keyLastService  = "last_service"
)

var (
	customerPattern = regexp.MustCompile(`[Cc]ustomer[:\s]+([A-Za-z0-9_-]+)`)
	servicePattern  = regexp.MustCompile(`[Ss]ervice[:\s]+([A-Za-z0-9_-]+)`)
)

// MemoryState 记忆内容快照
type MemoryState struct {
	PreferredLanguage string `json:"preferred_language"`
	LastCustomer      string `json:"last_customer,omitempty"`
	LastService       string `json:"last_service,omitempty"`
}

// OpsMemory 跨运行共享的上下文记忆（对外导出）
// 语言偏好使用缓存的默认有效期；最近客户与服务按 ttl 过期
type OpsMemory struct {
	store cache.Cache
	ttl   time.Duration
}

// NewOpsMemory 创建上下文记忆（对外导出）
// store 为 nil 时使用不过期的内存缓存
func NewOpsMemory(store cache.Cache, ttl time.Duration) *OpsMemory {
	if store == nil {
		store = cache.NewMemoryCache(0, 0)
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &OpsMemory{store: store, ttl: ttl}
}

// Language 当前客户沟通语言
func (m *OpsMemory) Language() string {
	if v, ok := m.store.Get(keyLanguage); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultLanguage
}

// SetLanguage 设置客户沟通语言
func (m *OpsMemory) SetLanguage(language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return fmt.Errorf("语言不能为空")
	}
	// 使用缓存默认有效期
	return m.store.Set(keyLanguage, strings.ToLower(language), 0)
}

func (m *OpsMemory) getString(key string) string {
	v, ok := m.store.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Instructions 运行前注入的上下文指令
func (m *OpsMemory) Instructions() string {
	var parts []string
	if lang := m.Language(); lang == DefaultLanguage {
		parts = append(parts, "Respond in Hebrew when addressing the customer. Keep technical terms in English.")
	} else {
		parts = append(parts, fmt.Sprintf("Respond in %s. Keep answers concise.", lang))
	}
	if svc := m.getString(keyLastService); svc != "" {
		parts = append(parts, fmt.Sprintf("Context: Previous interaction involved service '%s'.", svc))
	}
	if customer := m.getString(keyLastCustomer); customer != "" {
		parts = append(parts, fmt.Sprintf("Context: Previous customer was '%s'.", customer))
	}
	return strings.Join(parts, " ")
}

// Observe 从文本中提取客户与服务并记住
func (m *OpsMemory) Observe(text string) {
	if match := customerPattern.FindStringSubmatch(text); match != nil {
		_ = m.store.Set(keyLastCustomer, match[1], m.ttl)
	}
	if match := servicePattern.FindStringSubmatch(text); match != nil {
		_ = m.store.Set(keyLastService, match[1], m.ttl)
	}
}

// State 当前记忆快照
func (m *OpsMemory) State() MemoryState {
	return MemoryState{
		PreferredLanguage: m.Language(),
		LastCustomer:      m.getString(keyLastCustomer),
		LastService:       m.getString(keyLastService),
	}
}

// Clear 清除最近客户与服务（保留语言偏好）
func (m *OpsMemory) Clear() {
	_ = m.store.Delete(keyLastCustomer)
	_ = m.store.Delete(keyLastService)
}
