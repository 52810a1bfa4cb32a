// Package goid 读取当前 goroutine 编号，用于日志关联同一采集周期内的输出
package goid

import (
	"bytes"
	"runtime"

	"github.com/DataDog/gostackparse"
)

// GetGID 获取当前 goroutine 的 ID，解析失败返回 0
func GetGID() uint64 {
	goroutines, _ := gostackparse.Parse(bytes.NewReader(currentStack()))
	if len(goroutines) == 0 || goroutines[0].ID <= 0 {
		return 0
	}
	return uint64(goroutines[0].ID)
}

// currentStack 截断的栈会被解析器丢弃，需完整读取
func currentStack() []byte {
	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
