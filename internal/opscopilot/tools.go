package opscopilot

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

//go:embed runbooks.html
var runbooksHTML string

// 服务健康状态（按服务名关键字匹配，顺序即优先级）
var serviceHealth = []struct{ key, status string }{
	{"AKS", "Status: Degraded. 1 of 3 nodes NotReady. Pods rescheduling in progress."},
	{"VM-SQL", "Status: Warning. CPU high, memory OK. Last backup: 2h ago."},
	{"APIM", "Status: Degraded. Latency elevated. Backend pool healthy."},
	{"Identity", "Status: Healthy. Auth service responding. WAF active."},
	{"Storage", "Status: Warning. IOPS at 95% limit. No data loss detected."},
	{"Cert", "Status: Attention. Certificate expires in 3 days."},
	{"Redis", "Status: Critical. Memory at 99%. Eviction policy active."},
}

// 已知问题：服务关键字 -> 标题关键字 -> 描述
var knownIssues = []struct {
	service string
	issues  []struct{ keyword, issue string }
}{
	{"AKS", []struct{ keyword, issue string }{
		{"notready", "KI-2024-001: AKS nodes may enter NotReady due to kubelet memory leak in version 1.27.3. Mitigation: Upgrade to 1.27.5+"},
		{"eviction", "KI-2024-002: Pod eviction storms can occur with aggressive PDB settings. Review PodDisruptionBudgets."},
	}},
	{"APIM", []struct{ keyword, issue string }{
		{"latency", "KI-2024-010: Latency spikes observed when policy expressions contain complex XML parsing. Simplify policies."},
	}},
	{"Redis", []struct{ keyword, issue string }{
		{"memory", "KI-2024-015: Redis 6.0 has known memory fragmentation issues. Consider Redis 7.0 upgrade."},
	}},
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// FetchServiceHealth 查询服务健康状态（模拟数据）
func FetchServiceHealth(service string) string {
	for _, h := range serviceHealth {
		if containsFold(service, h.key) {
			return h.status
		}
	}
	return fmt.Sprintf("Status: Unknown. No health data available for %s.", service)
}

// SearchKnownIssues 按服务与关键字查找已知问题（模拟数据）
func SearchKnownIssues(service, keywords string) string {
	for _, svc := range knownIssues {
		if !containsFold(service, svc.service) {
			continue
		}
		for _, ki := range svc.issues {
			if containsFold(keywords, ki.keyword) {
				return ki.issue
			}
		}
	}
	return fmt.Sprintf("No known issues found for %s with keywords: %s", service, keywords)
}

// RestartService 重启服务（模拟，需审批）
func RestartService(service string) string {
	return fmt.Sprintf("[MOCK] Service '%s' has been restarted successfully. Recovery time: ~2 minutes.", service)
}

// OpenSev1Bridge 开启 Sev1 电话桥（模拟，需审批）
func OpenSev1Bridge(incidentID, customer string) string {
	return fmt.Sprintf("[MOCK] Sev1 bridge opened for %s. Customer: %s. Bridge ID: BR-%s-001. Dial-in: +1-800-555-0123",
		incidentID, customer, incidentID)
}

// Runbook 处置手册条目
type Runbook struct {
	Service  string
	Category string
	Title    string
	Steps    []string
}

// String 渲染为文本片段
func (r Runbook) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Runbook: %s", r.Title)
	for i, step := range r.Steps {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, step)
	}
	return sb.String()
}

// RunbookCatalog 处置手册目录（对外导出）
type RunbookCatalog struct {
	runbooks []Runbook
}

// ParseRunbooks 解析HTML形式的处置手册目录（使用goquery）
// 每个 section.runbook 通过 data-service / data-category 标注适用范围
func ParseRunbooks(r io.Reader) (*RunbookCatalog, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("解析处置手册HTML失败: %w", err)
	}

	catalog := &RunbookCatalog{}
	doc.Find("section.runbook").Each(func(_ int, s *goquery.Selection) {
		service, _ := s.Attr("data-service")
		category, _ := s.Attr("data-category")
		rb := Runbook{
			Service:  strings.TrimSpace(service),
			Category: strings.TrimSpace(category),
			Title:    strings.TrimSpace(s.Find("h2").First().Text()),
		}
		s.Find("ol li").Each(func(_ int, li *goquery.Selection) {
			if step := strings.TrimSpace(li.Text()); step != "" {
				rb.Steps = append(rb.Steps, step)
			}
		})
		if rb.Service == "" || rb.Title == "" {
			return
		}
		catalog.runbooks = append(catalog.runbooks, rb)
	})
	return catalog, nil
}

// Len 条目数
func (c *RunbookCatalog) Len() int { return len(c.runbooks) }

// Find 按服务名关键字与类别查找
func (c *RunbookCatalog) Find(service, category string) (Runbook, bool) {
	for _, rb := range c.runbooks {
		if containsFold(service, rb.Service) && strings.EqualFold(rb.Category, category) {
			return rb, true
		}
	}
	return Runbook{}, false
}

// Lookup 查找处置手册文本，未命中时返回通用提示
func (c *RunbookCatalog) Lookup(service, category string) string {
	if rb, ok := c.Find(service, category); ok {
		return rb.String()
	}
	return fmt.Sprintf("No specific runbook found for %s/%s. Follow general incident response procedures.", service, category)
}

var (
	defaultCatalog     *RunbookCatalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultRunbooks 内置处置手册目录
func DefaultRunbooks() (*RunbookCatalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseRunbooks(strings.NewReader(runbooksHTML))
	})
	return defaultCatalog, defaultCatalogErr
}

// LookupRunbook 在内置目录中查找处置手册
func LookupRunbook(service, category string) (string, error) {
	catalog, err := DefaultRunbooks()
	if err != nil {
		return "", err
	}
	return catalog.Lookup(service, category), nil
}
