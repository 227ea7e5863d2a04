package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// Level 日志级别
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlue),
	LevelInfo:  color.New(color.FgHiCyan),
	LevelWarn:  color.New(color.FgHiYellow),
	LevelError: color.New(color.FgHiRed),
	LevelFatal: color.New(color.FgHiRed, color.Bold),
}

var prefixColor = color.New(color.FgHiBlue)

// ParseLevel 解析配置中的级别名称，未知名称按 info 处理
func ParseLevel(name string) Level {
	want := strings.ToUpper(strings.TrimSpace(name))
	if want == "WARNING" {
		want = "WARN"
	}
	for lvl, n := range levelNames {
		if n == want {
			return lvl
		}
	}
	return LevelInfo
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

var (
	minLevel atomic.Int32
	outMu    sync.Mutex
	out      io.Writer = os.Stdout
	exitFunc           = os.Exit
)

// SetLevel 设置最低输出级别
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// GetLevel 当前最低输出级别
func GetLevel() Level {
	return Level(minLevel.Load())
}

// SetOutput 替换输出目标
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

// lineWriter 接管标准库 log 的输出，gin 等第三方日志也统一着色
type lineWriter struct{}

func (lineWriter) Write(p []byte) (int, error) {
	emit(LevelInfo, 4, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func init() {
	minLevel.Store(int32(LevelInfo))
	log.SetFlags(0)
	log.SetOutput(lineWriter{})
}

// emit 组装 "时间 文件:行 [级别] 内容" 并输出
func emit(level Level, skip int, msg string) {
	if level < GetLevel() {
		return
	}

	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "???", 0
	}

	var sb strings.Builder
	sb.WriteString(prefixColor.Sprintf("%s %s:%d", time.Now().Format("2006/01/02 15:04:05.000"), filepath.Base(file), line))
	sb.WriteByte(' ')
	sb.WriteString(levelColors[level].Sprintf("[%s]", level))
	sb.WriteByte(' ')
	sb.WriteString(highlight(msg))
	sb.WriteByte('\n')

	outMu.Lock()
	_, _ = io.WriteString(out, sb.String())
	outMu.Unlock()
}

func Debug(format string, v ...interface{}) {
	emit(LevelDebug, 2, fmt.Sprintf(format, v...))
}

func Info(format string, v ...interface{}) {
	emit(LevelInfo, 2, fmt.Sprintf(format, v...))
}

func Warn(format string, v ...interface{}) {
	emit(LevelWarn, 2, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	emit(LevelError, 2, fmt.Sprintf(format, v...))
}

func Fatal(format string, v ...interface{}) {
	emit(LevelFatal, 2, fmt.Sprintf(format, v...))
	exitFunc(1)
}
