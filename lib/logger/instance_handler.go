package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// InstanceKey is the attribute that routes a record to a per-instance log.
const InstanceKey = "instance_id"

// InstanceLogHandler wraps an slog.Handler and also appends records carrying
// an instance_id attribute to that instance's devattach.log, in text format.
//
// The attribute may be bound through With or passed on the record itself;
// the record value wins.
type InstanceLogHandler struct {
	slog.Handler
	logPathFunc func(id string) string
	preAttrs    []slog.Attr
	instanceID  string
}

// NewInstanceLogHandler creates a handler that wraps the given handler.
// logPathFunc returns the devattach.log path for an instance ID.
func NewInstanceLogHandler(wrapped slog.Handler, logPathFunc func(id string) string) *InstanceLogHandler {
	return &InstanceLogHandler{
		Handler:     wrapped,
		logPathFunc: logPathFunc,
	}
}

// Handle passes the record on, then copies it to the instance log if any.
func (h *InstanceLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}

	instanceID := h.instanceID
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == InstanceKey {
			instanceID = a.Value.String()
			return false
		}
		return true
	})

	if instanceID != "" {
		h.writeToInstanceLog(ctx, instanceID, r)
	}
	return nil
}

// writeToInstanceLog opens the log per record, so no file handles outlive a
// deleted instance.
func (h *InstanceLogHandler) writeToInstanceLog(ctx context.Context, instanceID string, r slog.Record) {
	logPath := h.logPathFunc(instanceID)
	if logPath == "" {
		return
	}

	// Only log for instances that still have a directory; never create one.
	logsDir := filepath.Dir(logPath)
	if _, err := os.Stat(filepath.Dir(logsDir)); err != nil {
		return
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		// Package-level slog has no instance_id, so this cannot recurse.
		slog.Warn("failed to create instance log directory", "path", logsDir, "error", err)
		return
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("failed to open instance log file", "path", logPath, "error", err)
		return
	}
	defer f.Close()

	stripped := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != InstanceKey {
			stripped.AddAttrs(a)
		}
		return true
	})

	text := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}).WithAttrs(h.preAttrs)
	if err := text.Handle(ctx, stripped); err != nil {
		slog.Warn("failed to write to instance log file", "path", logPath, "error", err)
	}
}

// WithAttrs returns a new handler with the given attributes.
// An instance_id among them is remembered and kept out of the file output.
func (h *InstanceLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &InstanceLogHandler{
		Handler:     h.Handler.WithAttrs(attrs),
		logPathFunc: h.logPathFunc,
		preAttrs:    append([]slog.Attr(nil), h.preAttrs...),
		instanceID:  h.instanceID,
	}
	for _, a := range attrs {
		if a.Key == InstanceKey {
			next.instanceID = a.Value.String()
			continue
		}
		next.preAttrs = append(next.preAttrs, a)
	}
	return next
}

// WithGroup returns a new handler with the given group name.
// Instance IDs are only looked up at the top level.
func (h *InstanceLogHandler) WithGroup(name string) slog.Handler {
	return &InstanceLogHandler{
		Handler:     h.Handler.WithGroup(name),
		logPathFunc: h.logPathFunc,
		preAttrs:    h.preAttrs,
		instanceID:  h.instanceID,
	}
}
