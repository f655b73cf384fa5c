package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
agentflow:
  general:
    instance_name: ops-copilot
    log_level: debug
    log_format: json
  execution:
    worker_concurrency: 4
    max_concurrency_per_run: 2
    default_node_timeout: 30s
    retry:
      max_attempts: 1
      delay: 100ms
      max_delay: 1s
  storage:
    database:
      enabled: true
      type: sqlite
      dsn: ${AGENTFLOW_TEST_DSN}
  api:
    port: 9090
  schedules:
    - name: nightly
      workflow: opscopilot
      cron: "0 0 2 * * *"
      input:
        incident_id: INC-001
  notifications:
    email:
      enabled: true
      smtp_host: smtp.example.com
      password: ${AGENTFLOW_TEST_SMTP_PASSWORD}
      from: bot@example.com
      to: [oncall@example.com]
`

func TestLoadFrameworkConfig(t *testing.T) {
	t.Setenv("AGENTFLOW_TEST_DSN", "file:runs.db")
	t.Setenv("AGENTFLOW_TEST_SMTP_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadFrameworkConfig(path)
	require.NoError(t, err)

	af := cfg.AgentFlow
	assert.Equal(t, "ops-copilot", af.General.InstanceName)
	assert.Equal(t, "json", af.General.LogFormat)
	assert.Equal(t, 4, cfg.GetWorkerConcurrency())
	assert.Equal(t, 2, af.Execution.MaxConcurrencyPerRun)
	assert.Equal(t, 30*time.Second, af.Execution.DefaultNodeTimeout)
	assert.Equal(t, 100*time.Millisecond, af.Execution.Retry.Delay)
	assert.Equal(t, "file:runs.db", cfg.GetDatabaseDSN())
	assert.Equal(t, "s3cret", af.Notifications.Email.Password)
	assert.Equal(t, "0.0.0.0:9090", cfg.APIAddr())

	require.Len(t, af.Schedules, 1)
	assert.Equal(t, "INC-001", af.Schedules[0].Input["incident_id"])
	assert.Equal(t, []string{"approval.requested", "run.failed"}, af.Notifications.Email.OnEvents)
}

func TestLoadFrameworkConfig_MissingFile(t *testing.T) {
	_, err := LoadFrameworkConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "agentflow", cfg.AgentFlow.General.InstanceName)
	assert.Equal(t, 10, cfg.GetWorkerConcurrency())
	assert.Equal(t, "sqlite", cfg.GetDatabaseType())
	assert.Equal(t, 8080, cfg.AgentFlow.API.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *EngineConfig)
	}{
		{"bad log level", func(c *EngineConfig) { c.AgentFlow.General.LogLevel = "trace" }},
		{"bad log format", func(c *EngineConfig) { c.AgentFlow.General.LogFormat = "xml" }},
		{"negative per-run cap", func(c *EngineConfig) { c.AgentFlow.Execution.MaxConcurrencyPerRun = -1 }},
		{"max delay below delay", func(c *EngineConfig) { c.AgentFlow.Execution.Retry.MaxDelay = time.Millisecond }},
		{"bad database type", func(c *EngineConfig) {
			c.AgentFlow.Storage.Database.Enabled = true
			c.AgentFlow.Storage.Database.Type = "oracle"
		}},
		{"schedule without workflow", func(c *EngineConfig) {
			c.AgentFlow.Schedules = []ScheduleConfig{{Cron: "* * * * * *"}}
		}},
		{"email without host", func(c *EngineConfig) { c.AgentFlow.Notifications.Email.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
