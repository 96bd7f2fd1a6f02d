package core

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// NopMetricsRecorder drops every measurement. Services and workers built
// without a recorder fall back to it so call sites never nil-check.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// metricTagKeys is the allow-list of payload fields that may become metric
// tags. Everything else stays log-only; user IDs and token prefixes would
// blow up tag cardinality.
var metricTagKeys = []string{"provider_id", "org_id", "flow", "auth_method"}

// observeOperation emits the per-operation telemetry triple: a structured
// log line, an invocation counter, and a duration histogram. Service
// operations defer it at entry so the three always agree on status.
func (s *Service) observeOperation(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt)

	logFields := cloneFields(fields)
	logFields["event_type"] = operation
	logFields["status"] = status
	logFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logFields["error"] = err.Error()
	}

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(raw))
		if value == "" || value == "<nil>" {
			continue
		}
		tags[key] = value
	}

	s.recordCounter(ctx, "authority."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "authority."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	if err != nil {
		s.logError(ctx, operation+" failed", logFields)
		return
	}
	s.logInfo(ctx, operation+" succeeded", logFields)
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.operationLogger(ctx, fields); logger != nil {
		logger.Info(message, flattenFields(fields)...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.operationLogger(ctx, fields); logger != nil {
		logger.Error(message, flattenFields(fields)...)
	}
}

// operationLogger scopes the service logger to the request context and,
// when the backend supports it, binds the fields structurally too.
func (s *Service) operationLogger(ctx context.Context, fields map[string]any) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fl, ok := logger.(FieldsLogger); ok {
		logger = fl.WithFields(cloneFields(fields))
	}
	return logger
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
}

// cloneFields and cloneTags copy maps before they cross a logger or
// recorder boundary. Results are never nil so callers can add entries.
func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	maps.Copy(copied, fields)
	return copied
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	maps.Copy(copied, tags)
	return copied
}

// flattenFields renders a field map as the alternating key/value slice the
// logger variadics expect, sorted so repeated runs log identically.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

// normalizeOperation folds operation labels to snake_case so metric names
// stay stable no matter how call sites spell them.
func normalizeOperation(operation string) string {
	operation = strings.ToLower(strings.TrimSpace(operation))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
}
