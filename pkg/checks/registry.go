package checks

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownPlugin 引用的插件未注册
var ErrUnknownPlugin = errors.New("unknown plugin")

// PluginLoadError 按名称加载插件失败（构造阶段发生，运行期不会出现）
type PluginLoadError struct {
	Ref string
	Err error
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("load plugin %q: %v", e.Ref, e.Err)
}

func (e *PluginLoadError) Unwrap() error { return e.Err }

// MetricsCheckFactory builds a metrics check from its textual reference.
type MetricsCheckFactory func(logger *zap.Logger) (MetricsCheck, error)

// Registry 自定义指标检查注册表，按名称查找工厂
type Registry struct {
	mu        sync.RWMutex
	factories map[string]MetricsCheckFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]MetricsCheckFactory{}}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f MetricsCheckFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names 已注册名称（排序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load resolves one reference. Factory errors and panics become *PluginLoadError.
func (r *Registry) Load(ref string, logger *zap.Logger) (MetricsCheck, error) {
	r.mu.RLock()
	f, ok := r.factories[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, &PluginLoadError{Ref: ref, Err: ErrUnknownPlugin}
	}

	var c MetricsCheck
	err := Safe(func() error {
		var ferr error
		c, ferr = f(logger)
		return ferr
	})
	if err != nil {
		return nil, &PluginLoadError{Ref: ref, Err: err}
	}
	if c == nil {
		return nil, &PluginLoadError{Ref: ref, Err: errors.New("factory returned nil check")}
	}
	return c, nil
}

// LoadAll 加载全部引用；失败的插件记录日志后被忽略，整个进程生命周期内不再重试
func (r *Registry) LoadAll(refs []string, logger *zap.Logger) []MetricsCheck {
	loaded := make([]MetricsCheck, 0, len(refs))
	for _, ref := range refs {
		c, err := r.Load(ref, logger)
		if err != nil {
			logger.Error("unable to load custom check", zap.String("ref", ref), zap.Error(err))
			continue
		}
		loaded = append(loaded, c)
	}
	return loaded
}
