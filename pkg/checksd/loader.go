package checksd

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/DataDog/gostackparse"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/config"
)

// Factory 根据配置创建检查实例
type Factory func(cfg config.CheckConfig, logger *zap.Logger) (Check, error)

// InitFailure 检查初始化失败的记录
type InitFailure struct {
	Error     string
	Traceback string
}

// InitError wraps a failed check construction together with its rendered traceback.
type InitError struct {
	Check     string
	Err       error
	Traceback string
}

func (e *InitError) Error() string { return fmt.Sprintf("init check %q: %v", e.Check, e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// LoadResult 加载结果：成功初始化的检查 + 初始化失败的检查
type LoadResult struct {
	Initialized []Check
	InitFailed  map[string]InitFailure
}

// FailedNames returns init failure names in sorted order.
func (r LoadResult) FailedNames() []string {
	names := make([]string, 0, len(r.InitFailed))
	for n := range r.InitFailed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registry checks.d 工厂注册表，键为检查名称
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Load 初始化所有配置的检查；失败不会中断其余检查的初始化
func (r *Registry) Load(cfgs []config.CheckConfig, logger *zap.Logger) LoadResult {
	res := LoadResult{InitFailed: map[string]InitFailure{}}
	for _, cfg := range cfgs {
		c, err := r.build(cfg, logger)
		if err != nil {
			var ie *InitError
			if !errors.As(err, &ie) {
				ie = &InitError{Check: cfg.Name, Err: err}
			}
			logger.Error("unable to initialize check", zap.String("check", cfg.Name), zap.Error(ie.Err))
			res.InitFailed[cfg.Name] = InitFailure{Error: ie.Err.Error(), Traceback: ie.Traceback}
			continue
		}
		logger.Debug("check initialized", zap.String("check", c.Name()), zap.Int("instances", len(cfg.Instances)))
		res.Initialized = append(res.Initialized, c)
	}
	return res
}

func (r *Registry) build(cfg config.CheckConfig, logger *zap.Logger) (Check, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		err := &checks.PluginLoadError{Ref: cfg.Name, Err: checks.ErrUnknownPlugin}
		return nil, &InitError{Check: cfg.Name, Err: err, Traceback: FormatTraceback(debug.Stack(), err)}
	}

	var c Check
	err := checks.Safe(func() error {
		var ferr error
		c, ferr = f(cfg, logger)
		return ferr
	})
	if err != nil {
		stack := debug.Stack()
		var pe *checks.PanicError
		if errors.As(err, &pe) {
			stack = pe.Stack
		}
		return nil, &InitError{Check: cfg.Name, Err: err, Traceback: FormatTraceback(stack, err)}
	}
	if c == nil {
		err := errors.New("factory returned nil check")
		return nil, &InitError{Check: cfg.Name, Err: err, Traceback: FormatTraceback(debug.Stack(), err)}
	}
	return c, nil
}

// FormatTraceback renders a goroutine dump as a compact traceback, innermost call last.
func FormatTraceback(stack []byte, cause error) string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")

	goroutines, _ := gostackparse.Parse(bytes.NewReader(stack))
	if len(goroutines) > 0 {
		frames := goroutines[0].Stack
		for i := len(frames) - 1; i >= 0; i-- {
			f := frames[i]
			fmt.Fprintf(&b, "  File %q, line %d, in %s\n", f.File, f.Line, f.Func)
		}
	}
	if cause != nil {
		b.WriteString(cause.Error())
	}
	return b.String()
}
