/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging provides the Logger used throughout devgraph: a plain
// implementation for non-interactive/CI use, and a live-rendering one for
// interactive terminals that also feeds a browser-facing log overlay over
// the HMR channel.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Logger is the logging interface used throughout devgraph.
type Logger interface {
	Info(msg string, args ...any)
	Warning(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Broadcaster is the subset of hmr.Broadcaster the live logger needs to
// push a custom "logs" event to connected browser clients, kept as a
// narrow interface here so this package does not import hmr directly.
type Broadcaster interface {
	Broadcast(entries []LogEntry) error
}

// LogEntry is a single structured log entry, suitable for JSON encoding
// into an HMR custom event.
type LogEntry struct {
	Type    string `json:"type"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// defaultLogger writes plain lines through the standard log package, for
// non-interactive use (CI, piped output).
type defaultLogger struct{}

// NewDefaultLogger returns a Logger that writes through the standard
// library's log package.
func NewDefaultLogger() Logger { return &defaultLogger{} }

func (l *defaultLogger) Info(msg string, args ...any)    { log.Printf("[INFO] "+msg, args...) }
func (l *defaultLogger) Warning(msg string, args ...any) { log.Printf("[WARN] "+msg, args...) }
func (l *defaultLogger) Error(msg string, args ...any)   { log.Printf("[ERROR] "+msg, args...) }
func (l *defaultLogger) Debug(msg string, args ...any)   { log.Printf("[DEBUG] "+msg, args...) }

// pendingLog buffers a log call made before the live area has started.
type pendingLog struct {
	levelType string
	message   string
	timestamp string
}

// liveLogger implements Logger with a pterm live-rendering area when
// attached to an interactive terminal, and falls back to plain pterm
// printers otherwise. It buffers structured LogEntry records that a
// connected HMR client can retrieve as a devtools-overlay feed.
type liveLogger struct {
	verbose     bool
	interactive bool

	mu           sync.Mutex
	logs         []LogEntry
	terminalLogs []string
	pendingLogs  []pendingLog
	maxLogs      int
	maxTermLogs  int
	status       string
	area         *pterm.AreaPrinter
	renderMu     sync.Mutex

	broadcaster Broadcaster
}

// LiveLogger is the Logger used by `devgraph serve`'s interactive mode: it
// adds the buffered-entry and live-rendering controls a TUI and an HMR log
// overlay both need on top of the plain Logger interface.
type LiveLogger interface {
	Logger
	Start()
	Stop()
	SetStatus(status string)
	SetBroadcaster(b Broadcaster)
	Logs() []LogEntry
	Clear()
}

// NewLiveLogger returns a Logger that live-renders in an interactive
// terminal (auto-detected) and buffers entries for an HMR log overlay.
func NewLiveLogger(verbose bool) LiveLogger {
	return &liveLogger{
		verbose:     verbose,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		maxLogs:     100,
		maxTermLogs: 50,
		status:      "Starting...",
	}
}

// Start begins the live rendering area. Call once initial setup logging
// has settled so early lines don't scroll above the area.
func (l *liveLogger) Start() {
	l.mu.Lock()
	if !l.interactive {
		l.mu.Unlock()
		return
	}
	if l.area != nil {
		l.mu.Unlock()
		l.render()
		return
	}
	pending := l.pendingLogs
	l.pendingLogs = nil
	l.mu.Unlock()

	area, _ := pterm.DefaultArea.Start()

	l.mu.Lock()
	l.area = area
	for _, p := range pending {
		l.formatAndBufferLog(p.levelType, p.message, p.timestamp)
	}
	l.mu.Unlock()

	if area != nil {
		l.render()
	}
}

// Stop ends the live rendering area.
func (l *liveLogger) Stop() {
	l.mu.Lock()
	area := l.area
	l.area = nil
	l.mu.Unlock()
	if area != nil {
		if err := area.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to stop live log area: %v\n", err)
		}
	}
}

// SetStatus updates the status line pinned to the bottom of the live area.
func (l *liveLogger) SetStatus(status string) {
	l.mu.Lock()
	l.status = status
	l.mu.Unlock()
	if l.interactive {
		l.render()
	}
}

// SetBroadcaster attaches the HMR channel's log feed; once set, every new
// entry is also pushed there for a connected devtools overlay.
func (l *liveLogger) SetBroadcaster(b Broadcaster) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcaster = b
}

// Logs returns a copy of the buffered structured entries, e.g. for an
// HTTP endpoint a freshly connected client can fetch on load.
func (l *liveLogger) Logs() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.logs))
	copy(out, l.logs)
	return out
}

func (l *liveLogger) render() {
	l.mu.Lock()
	if !l.interactive || l.area == nil {
		l.mu.Unlock()
		return
	}
	var sb strings.Builder
	for _, line := range l.terminalLogs {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + pterm.FgGray.Sprint(strings.Repeat("─", 80)) + "\n")
	sb.WriteString(pterm.FgLightGreen.Sprint("● ") + l.status)
	area := l.area
	output := sb.String()
	l.mu.Unlock()

	l.renderMu.Lock()
	area.Update(output)
	l.renderMu.Unlock()
}

// formatAndBufferLog must be called with l.mu held.
func (l *liveLogger) formatAndBufferLog(levelType, message, timestamp string) {
	var prefix, colored string
	ts := pterm.FgGray.Sprint(timestamp)

	switch levelType {
	case "info":
		prefix, colored = pterm.FgCyan.Sprint("INFO "), message
	case "warning":
		prefix, colored = pterm.FgYellow.Sprint("WARN "), pterm.FgYellow.Sprint(message)
	case "error":
		prefix, colored = pterm.FgRed.Sprint("ERROR"), pterm.FgRed.Sprint(message)
	case "debug":
		prefix, colored = pterm.FgGray.Sprint("DEBUG"), pterm.FgGray.Sprint(message)
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	visualLen := len(levelType) + 1 + len(message)
	padding := max(width-visualLen-10, 1)

	line := fmt.Sprintf(" %s %s%s%s", prefix, colored, strings.Repeat(" ", padding), ts)
	l.terminalLogs = append(l.terminalLogs, line)
	if len(l.terminalLogs) > l.maxTermLogs {
		l.terminalLogs = l.terminalLogs[len(l.terminalLogs)-l.maxTermLogs:]
	}
}

func (l *liveLogger) log(levelType, msg string, args ...any) {
	formatted := fmt.Sprintf(msg, args...)
	now := time.Now()
	timestamp := now.Format("15:04:05")

	l.mu.Lock()
	entry := LogEntry{Type: levelType, Date: now.Format(time.RFC3339), Message: formatted}
	l.logs = append(l.logs, entry)
	if len(l.logs) > l.maxLogs {
		l.logs = l.logs[len(l.logs)-l.maxLogs:]
	}
	broadcaster := l.broadcaster
	shouldPrint := levelType != "debug" || l.verbose

	if shouldPrint {
		if l.interactive {
			if l.area != nil {
				l.formatAndBufferLog(levelType, formatted, timestamp)
				l.mu.Unlock()
				l.render()
			} else {
				l.pendingLogs = append(l.pendingLogs, pendingLog{levelType, formatted, timestamp})
				l.mu.Unlock()
			}
		} else {
			l.mu.Unlock()
			printNonInteractive(levelType, formatted)
		}
	} else {
		l.mu.Unlock()
	}

	if broadcaster != nil {
		if err := broadcaster.Broadcast([]LogEntry{entry}); err != nil {
			// A disconnected devtools client is not an error worth
			// logging here — doing so could recurse back into log().
			_ = err
		}
	}
}

func printNonInteractive(levelType, formatted string) {
	switch levelType {
	case "info":
		pterm.Info.Println(formatted)
	case "warning":
		pterm.Warning.Println(formatted)
	case "error":
		pterm.Error.Println(formatted)
	case "debug":
		pterm.Debug.Println(formatted)
	}
}

func (l *liveLogger) Info(msg string, args ...any)    { l.log("info", msg, args...) }
func (l *liveLogger) Warning(msg string, args ...any) { l.log("warning", msg, args...) }
func (l *liveLogger) Error(msg string, args ...any)   { l.log("error", msg, args...) }
func (l *liveLogger) Debug(msg string, args ...any)   { l.log("debug", msg, args...) }

// Clear empties the buffered logs, used when a CLI command restarts a
// watch session cleanly.
func (l *liveLogger) Clear() {
	l.mu.Lock()
	l.logs = nil
	l.terminalLogs = nil
	l.mu.Unlock()
	if l.interactive {
		l.render()
	}
}

// MarshalLogEntries is a small helper for HTTP handlers that serve the
// buffered log history to a freshly connected client.
func MarshalLogEntries(entries []LogEntry) ([]byte, error) {
	return json.Marshal(struct {
		Type string     `json:"type"`
		Logs []LogEntry `json:"logs"`
	}{Type: "logs", Logs: entries})
}
