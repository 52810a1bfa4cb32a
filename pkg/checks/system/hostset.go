package system

import (
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/host-collector/pkg/checks"
)

// HostKind 主机检查集合的类型，构造时确定，运行期不再变化
type HostKind int

const (
	HostUnix HostKind = iota
	HostWindows
)

func (k HostKind) String() string {
	if k == HostWindows {
		return "windows"
	}
	return "unix"
}

// KindFor maps a GOOS value to its check set kind.
func KindFor(goos string) HostKind {
	if goos == "windows" {
		return HostWindows
	}
	return HostUnix
}

// HostCheckSet 一组按固定顺序执行的系统探针
type HostCheckSet struct {
	Kind   HostKind
	Checks []checks.SystemCheck
}

// NewHostCheckSet selects the probe sequence for kind.
//
//	unix:    disk → load → memory → io → processes → cpu
//	windows: disk → memory → cpu → network → io → proc
func NewHostCheckSet(kind HostKind, src Source, clock clockwork.Clock) HostCheckSet {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if kind == HostWindows {
		return HostCheckSet{Kind: kind, Checks: []checks.SystemCheck{
			&winDisk{src: src, clock: clock},
			&winMemory{src: src, clock: clock},
			&winCPU{src: src, clock: clock},
			&winNetwork{src: src, clock: clock},
			&winIO{src: src, clock: clock},
			&winProc{src: src, clock: clock},
		}}
	}
	return HostCheckSet{Kind: kind, Checks: []checks.SystemCheck{
		&Disk{src: src},
		&Load{src: src},
		&Memory{src: src},
		&IO{src: src, clock: clock},
		&Processes{src: src},
		&CPU{src: src},
	}}
}

// NewLocalCheckSet 根据当前操作系统创建检查集合
func NewLocalCheckSet() HostCheckSet {
	return NewHostCheckSet(KindFor(runtime.GOOS), HostSource(), clockwork.NewRealClock())
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
