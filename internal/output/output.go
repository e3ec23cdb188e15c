package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/R167/mdnsamp/checkers/common"
)

type Output interface {
	Section(icon, title string)
	Header(title string)
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Detail(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Println(s string)
	Printf(format string, args ...interface{})
}

// line prefixes by level
var prefixes = map[string]string{
	"info":    "  ",
	"success": "  ✅ ",
	"warning": "  ⚠️  ",
	"error":   "  ❌ ",
	"detail":  "   ",
	"debug":   "  🔍 [DEBUG] ",
}

func section(icon, title string) string {
	return fmt.Sprintf("\n%s %s", icon, title)
}

func header(title string) string {
	return fmt.Sprintf("\n%s\n%s", title, strings.Repeat("=", len(title)))
}

func leveled(level, format string, args ...interface{}) string {
	return prefixes[level] + fmt.Sprintf(format, args...)
}

// StreamingOutput writes each line as it is produced.
type StreamingOutput struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewStreamingOutput(writer io.Writer) *StreamingOutput {
	if writer == nil {
		writer = os.Stdout
	}
	return &StreamingOutput{writer: writer}
}

func (o *StreamingOutput) write(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	io.WriteString(o.writer, s)
}

func (o *StreamingOutput) Section(icon, title string) { o.write(section(icon, title) + "\n") }
func (o *StreamingOutput) Header(title string)        { o.write(header(title) + "\n") }

func (o *StreamingOutput) Info(format string, args ...interface{}) {
	o.write(leveled("info", format, args...) + "\n")
}

func (o *StreamingOutput) Success(format string, args ...interface{}) {
	o.write(leveled("success", format, args...) + "\n")
}

func (o *StreamingOutput) Warning(format string, args ...interface{}) {
	o.write(leveled("warning", format, args...) + "\n")
}

func (o *StreamingOutput) Error(format string, args ...interface{}) {
	o.write(leveled("error", format, args...) + "\n")
}

func (o *StreamingOutput) Detail(format string, args ...interface{}) {
	o.write(leveled("detail", format, args...) + "\n")
}

func (o *StreamingOutput) Debug(format string, args ...interface{}) {
	if !common.IsDebugMode() {
		return
	}
	o.write(leveled("debug", format, args...) + "\n")
}

func (o *StreamingOutput) Println(s string) { o.write(s + "\n") }

// FlushFrom writes every line of b in one piece, excluding other writes on o.
func (o *StreamingOutput) FlushFrom(b *BufferedOutput) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b.Flush(o.writer)
}

func (o *StreamingOutput) Printf(format string, args ...interface{}) {
	o.write(fmt.Sprintf(format, args...))
}

type OutputLine struct {
	Level   string
	Message string
}

// BufferedOutput collects lines so concurrent scans can print their report
// in one piece with Flush.
type BufferedOutput struct {
	lines []OutputLine
	mu    sync.Mutex
}

func NewBufferedOutput() *BufferedOutput {
	return &BufferedOutput{}
}

func (o *BufferedOutput) add(level, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, OutputLine{Level: level, Message: msg})
}

func (o *BufferedOutput) Section(icon, title string) { o.add("section", section(icon, title)) }
func (o *BufferedOutput) Header(title string)        { o.add("header", header(title)) }

func (o *BufferedOutput) Info(format string, args ...interface{}) {
	o.add("info", leveled("info", format, args...))
}

func (o *BufferedOutput) Success(format string, args ...interface{}) {
	o.add("success", leveled("success", format, args...))
}

func (o *BufferedOutput) Warning(format string, args ...interface{}) {
	o.add("warning", leveled("warning", format, args...))
}

func (o *BufferedOutput) Error(format string, args ...interface{}) {
	o.add("error", leveled("error", format, args...))
}

func (o *BufferedOutput) Detail(format string, args ...interface{}) {
	o.add("detail", leveled("detail", format, args...))
}

func (o *BufferedOutput) Debug(format string, args ...interface{}) {
	if !common.IsDebugMode() {
		return
	}
	o.add("debug", leveled("debug", format, args...))
}

func (o *BufferedOutput) Println(s string) { o.add("info", s) }

func (o *BufferedOutput) Printf(format string, args ...interface{}) {
	o.add("info", fmt.Sprintf(format, args...))
}

// Flush writes every buffered line to writer. The buffer is kept.
func (o *BufferedOutput) Flush(writer io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, line := range o.lines {
		fmt.Fprintln(writer, line.Message)
	}
}

func (o *BufferedOutput) Lines() []OutputLine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]OutputLine{}, o.lines...)
}

// NoOpOutput is a no-op implementation for tests
type NoOpOutput struct{}

func NewNoOpOutput() *NoOpOutput {
	return &NoOpOutput{}
}

func (o *NoOpOutput) Section(icon, title string)                 {}
func (o *NoOpOutput) Header(title string)                        {}
func (o *NoOpOutput) Info(format string, args ...interface{})    {}
func (o *NoOpOutput) Success(format string, args ...interface{}) {}
func (o *NoOpOutput) Warning(format string, args ...interface{}) {}
func (o *NoOpOutput) Error(format string, args ...interface{})   {}
func (o *NoOpOutput) Detail(format string, args ...interface{})  {}
func (o *NoOpOutput) Debug(format string, args ...interface{})   {}
func (o *NoOpOutput) Println(s string)                           {}
func (o *NoOpOutput) Printf(format string, args ...interface{})  {}
