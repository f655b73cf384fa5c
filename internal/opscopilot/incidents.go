package opscopilot

// incidents 演示用事件
var incidents = []Incident{
	{
		ID:    "INC-001",
		Title: "AKS Node NotReady",
		Description: "Kubernetes node aks-nodepool1-12345 in cluster prod-west entered NotReady state. " +
			"Pods are being evicted. Customer: Contoso. Service: AKS-Prod-West.",
		Service:      "AKS-Prod-West",
		Customer:     "Contoso",
		SeverityHint: "High",
	},
	{
		ID:    "INC-002",
		Title: "VM CPU at 95%",
		Description: "Virtual machine vm-sql-primary CPU utilization sustained at 95% for 30 minutes. " +
			"Database queries slowing down. Customer: Fabrikam. Service: VM-SQL-Primary.",
		Service:      "VM-SQL-Primary",
		Customer:     "Fabrikam",
		SeverityHint: "Medium",
	},
	{
		ID:    "INC-003",
		Title: "API Gateway Latency Spike",
		Description: "API Gateway apim-prod-east showing p99 latency of 8 seconds (baseline: 200ms). " +
			"Multiple downstream services affected. Customer: Northwind. Service: APIM-Prod-East.",
		Service:      "APIM-Prod-East",
		Customer:     "Northwind",
		SeverityHint: "High",
	},
	{
		ID:    "INC-004",
		Title: "Suspicious Login Activity",
		Description: "Multiple failed login attempts detected from IP 192.168.1.100 targeting admin accounts. " +
			"Possible brute force attack. Customer: AdventureWorks. Service: Identity-Prod.",
		Service:      "Identity-Prod",
		Customer:     "AdventureWorks",
		SeverityHint: "Critical",
	},
	{
		ID:    "INC-005",
		Title: "Storage Account Throttling",
		Description: "Storage account stproddata01 hitting IOPS limits. Write operations failing intermittently. " +
			"Customer: WideWorldImporters. Service: Storage-Prod-Data.",
		Service:      "Storage-Prod-Data",
		Customer:     "WideWorldImporters",
		SeverityHint: "Medium",
	},
	{
		ID:    "INC-006",
		Title: "SSL Certificate Expiring",
		Description: "SSL certificate for api.contoso.com expires in 3 days. Renewal process needs initiation. " +
			"Customer: Contoso. Service: Cert-Management.",
		Service:      "Cert-Management",
		Customer:     "Contoso",
		SeverityHint: "Low",
	},
	{
		ID:    "INC-007",
		Title: "How to scale AKS cluster?",
		Description: "Customer asking how to scale their AKS cluster from 3 to 5 nodes. " +
			"This is a question, not an incident. Customer: Tailspin. Service: AKS-Dev.",
		Service:  "AKS-Dev",
		Customer: "Tailspin",
	},
	{
		ID:    "INC-008",
		Title: "Redis Cache Out of Memory",
		Description: "Redis cache redis-prod-sessions showing 99% memory utilization. " +
			"Session data at risk of eviction. Customer: Fabrikam. Service: Redis-Prod.",
		Service:      "Redis-Prod",
		Customer:     "Fabrikam",
		SeverityHint: "High",
	},
}

// Incidents 全部演示事件（副本）
func Incidents() []Incident {
	out := make([]Incident, len(incidents))
	copy(out, incidents)
	return out
}

// IncidentByID 按ID查找演示事件
func IncidentByID(id string) (Incident, bool) {
	for _, inc := range incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return Incident{}, false
}

// IncidentIDs 全部演示事件ID
func IncidentIDs() []string {
	ids := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		ids = append(ids, inc.ID)
	}
	return ids
}
