package applog

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Error logs an error without including user-provided data.
// It records the caller location and error type chain.
func Error(context string, err error) {
	if err == nil {
		return
	}
	slog.Error("operation failed",
		"at", callerLocation(2),
		"context", context,
		"types", strings.Join(errorTypes(err), "->"),
	)
}

func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

func callerLocation(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d %s", file, line, name)
}

func errorTypes(err error) []string {
	types := []string{}
	seen := map[string]struct{}{}
	for err != nil {
		name := fmt.Sprintf("%T", err)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			types = append(types, name)
		}
		err = errors.Unwrap(err)
	}
	return types
}
