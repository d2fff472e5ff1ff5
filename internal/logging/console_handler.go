package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// prettyHandler renders one human-oriented line per record:
//
//	2024-03-15 10:04:05 INFO  workflow[qbit] #7: polled status=completed
//
// The component, agent and item attributes are lifted into the subject
// prefix instead of being repeated as key=value pairs.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = appendFields(slices.Clone(h.fields), h.prefix, attrs)
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})

	var subject struct{ component, agent, item string }
	var sb strings.Builder
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			subject.component = firstNonEmpty(subject.component, plainString(f.value))
			continue
		case FieldAgent:
			subject.agent = firstNonEmpty(subject.agent, plainString(f.value))
			continue
		case FieldItemID:
			subject.item = firstNonEmpty(subject.item, plainString(f.value))
			continue
		}
		fmt.Fprintf(&sb, " %s=%s", f.key, quotedValue(f.value))
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := ts.Local().Format(consoleTimeLayout) + " " + levelTag(record.Level) + " "

	head := subject.component
	if subject.agent != "" {
		head += "[" + subject.agent + "]"
	}
	if subject.item != "" {
		head = strings.TrimSpace(head + " #" + subject.item)
	}
	if head != "" {
		line += head + ": "
	}

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line += msg

	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			line += " [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]"
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line+sb.String()+"\n")
	return err
}

func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner += attr.Key + "."
			}
			dst = appendFields(dst, inner, value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: value})
	}
	return dst
}

func firstNonEmpty(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}

func plainString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func quotedValue(v slog.Value) string {
	s := plainString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
