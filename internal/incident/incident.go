// Package incident implements spec.md §4.8: a filesystem watcher that
// tails workspace output files, classifies new content into incidents by
// file type and severity, and suppresses duplicate/low-severity noise.
//
// Grounded on internal/skills.Watcher's fsnotify lifecycle (watch a set of
// directories, react to Write/Create events, run a debounced handler), with
// the byte-offset tail-reading and classification logic originated fresh
// per spec.md since the teacher never retrieved an incident subsystem.
package incident

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// MaxReadBytes bounds how much of a growing file is read per tail pass.
const MaxReadBytes = 256 * 1024

// LowSeveritySuppressWindow is how long a repeat of the same low-severity
// fingerprint is suppressed for.
const LowSeveritySuppressWindow = 30 * time.Second

// Severity classifies how urgently an incident needs attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// FileClass describes which classification rules apply to a watched file.
type FileClass string

const (
	ClassLog             FileClass = "log"
	ClassOutputTarget     FileClass = "output_target"
	ClassStatus          FileClass = "status"
	ClassResearchOutputs FileClass = "research_outputs"
)

// Incident is one classified, deduped observation surfaced to the task
// creation pipeline (internal/missioncontrol).
type Incident struct {
	Source      string
	Class       FileClass
	Severity    Severity
	Summary     string
	Evidence    []string
	Fingerprint string
	At          time.Time
}

// WatchTarget is one file the generator tails, with the classification
// rule to apply to newly appended lines.
type WatchTarget struct {
	Path  string
	Class FileClass
}

// Handler is invoked with every freshly classified, non-suppressed
// incident.
type Handler func(Incident)

type cursor struct {
	offset int64
	size   int64
}

type dedupeEntry struct {
	fingerprint string
	at          time.Time
}

// Generator watches a set of files and turns newly appended lines into
// incidents.
type Generator struct {
	targets []WatchTarget
	handler Handler

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	cursors  map[string]cursor
	recent   map[string]dedupeEntry // fingerprint -> last-seen, for medium+ dedupe
	lowSeen  map[string]time.Time   // fingerprint -> last-seen, for low-severity suppression

	done chan struct{}
}

// NewGenerator builds a Generator over targets. Call Start to begin
// watching.
func NewGenerator(targets []WatchTarget, handler Handler) (*Generator, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	g := &Generator{
		targets: targets,
		handler: handler,
		fsw:     fsw,
		cursors: make(map[string]cursor),
		recent:  make(map[string]dedupeEntry),
		lowSeen: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	dirs := make(map[string]struct{})
	for _, t := range targets {
		dirs[filepath.Dir(t.Path)] = struct{}{}
	}
	for dir := range dirs {
		if dir == "" {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			slog.Debug("incident: failed to watch directory", "dir", dir, "error", err)
		}
	}
	return g, nil
}

// Start begins the watch loop. It first makes one tail pass over every
// target, which records each existing file's current size as its starting
// cursor; content already in a file is not reported, only what is appended
// afterwards.
func (g *Generator) Start(ctx context.Context) {
	for _, t := range g.targets {
		g.tail(t)
	}
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.done:
			return
		case event, ok := <-g.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			for _, t := range g.targets {
				if t.Path == event.Name {
					g.tail(t)
				}
			}
		case err, ok := <-g.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("incident: watcher error", "error", err)
		}
	}
}

// Close stops the watch loop.
func (g *Generator) Close() error {
	close(g.done)
	return g.fsw.Close()
}

// tail reads whatever has been appended to target.Path since the last
// cursor, classifies each new line, and dispatches non-suppressed
// incidents to the handler.
func (g *Generator) tail(target WatchTarget) {
	info, err := os.Stat(target.Path)
	if err != nil {
		return
	}

	g.mu.Lock()
	cur, seen := g.cursors[target.Path]
	g.mu.Unlock()

	if !seen {
		// First observation of this file: start tailing from the end so we
		// only report incidents going forward, not the entire history.
		g.mu.Lock()
		g.cursors[target.Path] = cursor{offset: info.Size(), size: info.Size()}
		g.mu.Unlock()
		return
	}

	if info.Size() < cur.size {
		// File shrank (rotated/truncated): reset to zero per spec.md §4.8.
		cur.offset = 0
	}

	f, err := os.Open(target.Path)
	if err != nil {
		return
	}
	defer f.Close()

	start := cur.offset
	if info.Size()-start > MaxReadBytes {
		start = info.Size() - MaxReadBytes
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxReadBytes)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	g.mu.Lock()
	g.cursors[target.Path] = cursor{offset: info.Size(), size: info.Size()}
	g.mu.Unlock()

	now := time.Now().UTC()
	for _, line := range lines {
		g.classifyAndDispatch(target, line, now)
	}
}

func (g *Generator) classifyAndDispatch(target WatchTarget, line string, now time.Time) {
	sev, summary := classify(target.Class, line)
	evidence := []string{line}
	fp := fingerprint(target.Path, sev, summary, evidence)

	if sev == SeverityLow {
		g.mu.Lock()
		last, ok := g.lowSeen[fp]
		g.lowSeen[fp] = now
		g.mu.Unlock()
		if ok && now.Sub(last) < LowSeveritySuppressWindow {
			return
		}
	} else {
		g.mu.Lock()
		last, ok := g.recent[fp]
		g.recent[fp] = dedupeEntry{fingerprint: fp, at: now}
		g.mu.Unlock()
		if ok && now.Sub(last.at) < LowSeveritySuppressWindow {
			return
		}
	}

	inc := Incident{
		Source:      target.Path,
		Class:       target.Class,
		Severity:    sev,
		Summary:     summary,
		Evidence:    evidence,
		Fingerprint: fp,
		At:          now,
	}
	if g.handler != nil {
		g.handler(inc)
	}
}

// classify applies per-file-type severity rules to one appended line.
func classify(class FileClass, line string) (Severity, string) {
	lower := strings.ToLower(line)
	switch class {
	case ClassLog:
		switch {
		case strings.Contains(lower, "panic") || strings.Contains(lower, "fatal"):
			return SeverityHigh, truncate(line, 200)
		case strings.Contains(lower, "error"):
			return SeverityMedium, truncate(line, 200)
		case strings.Contains(lower, "warn"):
			return SeverityLow, truncate(line, 200)
		default:
			return SeverityLow, truncate(line, 200)
		}
	case ClassOutputTarget:
		switch {
		case strings.Contains(lower, "failed") || strings.Contains(lower, "error"):
			return SeverityHigh, "output target reported failure: " + truncate(line, 180)
		default:
			return SeverityMedium, "output target updated: " + truncate(line, 180)
		}
	case ClassStatus:
		switch {
		case strings.Contains(lower, "down") || strings.Contains(lower, "unhealthy") || strings.Contains(lower, "crash"):
			return SeverityHigh, "status regression: " + truncate(line, 180)
		default:
			return SeverityLow, "status update: " + truncate(line, 180)
		}
	case ClassResearchOutputs:
		return SeverityMedium, "research output recorded: " + truncate(line, 180)
	default:
		return SeverityLow, truncate(line, 200)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// fingerprint matches the task-creation dedupe key in internal/missioncontrol:
// sha256(source + "\n" + severity + "\n" + summary + "\n" + evidence-joined).
func fingerprint(source string, sev Severity, summary string, evidence []string) string {
	var buf bytes.Buffer
	buf.WriteString(source)
	buf.WriteByte('\n')
	buf.WriteString(string(sev))
	buf.WriteByte('\n')
	buf.WriteString(summary)
	buf.WriteByte('\n')
	buf.WriteString(strings.Join(evidence, "\n"))
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// Fingerprint exposes the same hash scheme for callers (e.g.
// internal/missioncontrol) building a fingerprint from an already-built
// Incident, so both sides stay in lockstep.
func Fingerprint(source string, sev Severity, summary string, evidence []string) string {
	return fingerprint(source, sev, summary, evidence)
}

var _ = fmt.Sprintf // keep fmt import available for future diagnostic formatting
