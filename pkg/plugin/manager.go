package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/logging"
)

// Binding 插件绑定规则（对外导出）
type Binding struct {
	PluginName string             // 插件名称
	Event      realtime.EventType // 触发事件
	Condition  func(Data) bool    // 可选：条件函数，满足条件才触发
}

// Manager 插件管理器接口（对外导出）
type Manager interface {
	// Register 注册插件
	Register(plugin Plugin) error
	// RegisterWithInit 注册并初始化插件
	RegisterWithInit(plugin Plugin, params map[string]string) error
	// Bind 绑定插件到事件
	Bind(binding Binding) error
	// Trigger 触发绑定到该事件的插件
	Trigger(ctx context.Context, data Data) error
	// GetPlugin 获取已注册的插件
	GetPlugin(name string) (Plugin, bool)
	// ListPlugins 列出所有已注册的插件
	ListPlugins() []string
	// Unregister 取消注册插件
	Unregister(name string) error
}

// managerImpl 插件管理器实现（内部实现）
type managerImpl struct {
	plugins  map[string]Plugin                // 插件名称 -> 插件实例
	bindings map[realtime.EventType][]Binding // 事件类型 -> 绑定列表
	mu       sync.RWMutex
}

// NewManager 创建插件管理器（对外导出）
func NewManager() Manager {
	return &managerImpl{
		plugins:  make(map[string]Plugin),
		bindings: make(map[realtime.EventType][]Binding),
	}
}

// Register 注册插件
func (pm *managerImpl) Register(plugin Plugin) error {
	if plugin == nil {
		return fmt.Errorf("插件不能为空")
	}
	name := plugin.Name()
	if name == "" {
		return fmt.Errorf("插件名称不能为空")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.plugins[name]; exists {
		return fmt.Errorf("插件 %s 已注册", name)
	}
	pm.plugins[name] = plugin
	return nil
}

// RegisterWithInit 注册并初始化插件
func (pm *managerImpl) RegisterWithInit(plugin Plugin, params map[string]string) error {
	if err := pm.Register(plugin); err != nil {
		return err
	}
	if err := plugin.Init(params); err != nil {
		// 初始化失败，移除已注册的插件
		pm.mu.Lock()
		delete(pm.plugins, plugin.Name())
		pm.mu.Unlock()
		return fmt.Errorf("插件 %s 初始化失败: %w", plugin.Name(), err)
	}
	return nil
}

// Bind 绑定插件到事件
func (pm *managerImpl) Bind(binding Binding) error {
	if binding.PluginName == "" {
		return fmt.Errorf("插件名称不能为空")
	}
	if binding.Event == "" {
		return fmt.Errorf("触发事件不能为空")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.plugins[binding.PluginName]; !exists {
		return fmt.Errorf("插件 %s 未注册", binding.PluginName)
	}
	pm.bindings[binding.Event] = append(pm.bindings[binding.Event], binding)
	return nil
}

// Trigger 触发插件
// 单个插件失败不影响其他插件，所有错误合并返回
func (pm *managerImpl) Trigger(ctx context.Context, data Data) error {
	pm.mu.RLock()
	bindings := append([]Binding(nil), pm.bindings[data.Event]...)
	pm.mu.RUnlock()

	var errs []error
	for _, binding := range bindings {
		if binding.Condition != nil && !binding.Condition(data) {
			continue
		}
		plugin, exists := pm.GetPlugin(binding.PluginName)
		if !exists {
			continue
		}
		if err := plugin.Execute(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("插件 %s 执行失败: %w", binding.PluginName, err))
		}
	}
	return errors.Join(errs...)
}

// GetPlugin 获取已注册的插件
func (pm *managerImpl) GetPlugin(name string) (Plugin, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	plugin, exists := pm.plugins[name]
	return plugin, exists
}

// ListPlugins 列出所有已注册的插件（按名称排序）
func (pm *managerImpl) ListPlugins() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	names := make([]string, 0, len(pm.plugins))
	for name := range pm.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister 取消注册插件，并移除相关绑定
func (pm *managerImpl) Unregister(name string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.plugins[name]; !exists {
		return fmt.Errorf("插件 %s 未注册", name)
	}
	delete(pm.plugins, name)

	for event, bindings := range pm.bindings {
		filtered := make([]Binding, 0, len(bindings))
		for _, binding := range bindings {
			if binding.PluginName != name {
				filtered = append(filtered, binding)
			}
		}
		pm.bindings[event] = filtered
	}
	return nil
}

// Dispatch 按事件触发插件，直到事件通道关闭（对外导出）
// 事件通常来自 realtime.Bus 的订阅；插件错误只记录日志
func Dispatch(ctx context.Context, events <-chan realtime.Event, manager Manager, logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	for ev := range events {
		if err := manager.Trigger(ctx, DataFromEvent(ev)); err != nil {
			logger.Warn("插件执行失败", "run_id", ev.RunID, "event", ev.Type, "error", err)
		}
	}
}
