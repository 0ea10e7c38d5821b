package hooks

import (
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
)

// contextHook tags every entry with the file:line of the caller that logged it.
type contextHook struct {
	trimPrefix string
}

func NewContextHook() contextHook {
	return contextHook{trimPrefix: "jobrunner/"}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	if loc := callerLine(string(debug.Stack()), hook.trimPrefix); loc != "" {
		entry.Data["file:line"] = loc
	}
	return nil
}

// callerLine finds the first source line below the logrus frames in stack.
func callerLine(stack, trimPrefix string) string {
	lines := strings.Split(stack, "\n")
	inLogrus := false
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(line, "sirupsen/logrus") {
			inLogrus = true
			continue
		}
		if !inLogrus || !strings.HasPrefix(line, "/") {
			continue
		}
		if idx := strings.LastIndex(line, trimPrefix); idx >= 0 {
			line = line[idx+len(trimPrefix):]
		}
		if sp := strings.LastIndex(line, " +0x"); sp >= 0 {
			line = line[:sp]
		}
		return line
	}
	return ""
}
