package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/liuscraft/boombox/internal/logging"
)

// ToolExecutor 工具执行器接口
type ToolExecutor interface {
	Register(ctx context.Context, t tool.InvokableTool) error
	Infos(ctx context.Context) ([]*schema.ToolInfo, error)
	Execute(ctx context.Context, name, argumentsInJSON string) (string, error)
}

// ToolRegistry 工具注册表
type ToolRegistry struct {
	tools map[string]tool.InvokableTool
	mu    sync.RWMutex
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]tool.InvokableTool),
	}
}

// Register 按工具自身的名称注册，同名工具会被覆盖
func (r *ToolRegistry) Register(ctx context.Context, t tool.InvokableTool) error {
	info, err := t.Info(ctx)
	if err != nil {
		return fmt.Errorf("tool info: %w", err)
	}
	if info.Name == "" {
		return errors.New("tool has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[info.Name] = t
	return nil
}

func (r *ToolRegistry) Get(name string) (tool.InvokableTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names 按字典序返回已注册的工具名称
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type toolExecutor struct {
	registry *ToolRegistry
}

func NewToolExecutor() ToolExecutor {
	return &toolExecutor{
		registry: NewToolRegistry(),
	}
}

func (e *toolExecutor) Register(ctx context.Context, t tool.InvokableTool) error {
	return e.registry.Register(ctx, t)
}

func (e *toolExecutor) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	names := e.registry.Names()
	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		t, _ := e.registry.Get(name)
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %s info: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (e *toolExecutor) Execute(ctx context.Context, name, argumentsInJSON string) (string, error) {
	t, ok := e.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if argumentsInJSON == "" {
		argumentsInJSON = "{}"
	}
	logging.Infof("[Tool] %s called with args: %s", name, argumentsInJSON)
	result, err := t.InvokableRun(ctx, argumentsInJSON)
	if err != nil {
		logging.Errorf("[Tool] %s failed: %v", name, err)
		return "", err
	}
	logging.Debugf("[Tool] %s -> %s", name, result)
	return result, nil
}

// 错误定义
var (
	ErrToolNotFound = errors.New("tool not found")
)
