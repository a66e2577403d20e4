package notify

import (
	"fmt"
	"io"
	"sync"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Notifier shows short user-facing messages.
type Notifier interface {
	Success(message string)
	Error(message string)
	Warning(message string)
	Info(message string)
}

// LogNotifier writes one line per message.
type LogNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLogNotifier(out io.Writer) *LogNotifier {
	return &LogNotifier{out: out}
}

func (n *LogNotifier) Success(message string) { n.write("Success", message) }
func (n *LogNotifier) Error(message string)   { n.write("Error", message) }
func (n *LogNotifier) Warning(message string) { n.write("Warning", message) }
func (n *LogNotifier) Info(message string)    { n.write("Info", message) }

func (n *LogNotifier) write(label, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s: %s\n", label, message)
}

type Message struct {
	Level string
	Text  string
}

// Recorder keeps every message in order.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }
func (r *Recorder) Warning(message string) { r.add(LevelWarning, message) }
func (r *Recorder) Info(message string)    { r.add(LevelInfo, message) }

func (r *Recorder) add(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text})
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message of level, if any.
func (r *Recorder) Last(level string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Level == level {
			return r.messages[i].Text, true
		}
	}
	return "", false
}
