// Package tail 增量读取日志文件新追加的行，跨采集周期保存读取位置
package tail

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Follower 记录单个文件的读取偏移；文件被截断或轮转后从头读取
type Follower struct {
	path string

	mu      sync.Mutex
	offset  int64
	started bool
	// FromStart 首次读取时从文件开头开始，默认从末尾开始
	FromStart bool
}

func NewFollower(path string) *Follower {
	return &Follower{path: path}
}

func (f *Follower) Path() string { return f.path }

// ReadLines returns the complete lines appended since the previous call.
// A trailing partial line is left for the next call.
func (f *Follower) ReadLines() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.path, err)
	}
	size := info.Size()

	if !f.started {
		f.started = true
		if !f.FromStart {
			f.offset = size
			return nil, nil
		}
	}
	if size < f.offset {
		f.offset = 0
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", f.path, err)
	}

	var lines []string
	r := bufio.NewReader(file)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("read %s: %w", f.path, err)
		}
		f.offset += int64(len(line))
		line = line[:len(line)-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, line)
	}
	return lines, nil
}
