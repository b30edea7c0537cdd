package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups the non-nil errors under "errors", keyed by position.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID records the task identifier under "task_id".
func TaskID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("task_id", id)
}

// TaskType records the task type under "task_type".
func TaskType(t string) slog.Attr {
	return slog.String("task_type", t)
}

// NodeID records the CMS node identifier under "node_id".
func NodeID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("node_id", id)
}

// Rule records a rule name under "rule".
func Rule(name string) slog.Attr {
	return slog.String("rule", name)
}

// Resource records a lock resource under "resource".
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the emitting component under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a lifecycle event name under "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
