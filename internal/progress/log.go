package progress

import (
	"log/slog"
)

// Log reports progress through a slog.Logger: one line on Init, one on
// Done, and a line whenever another tenth of the total completes. It is
// the indicator the CLI wires up.
type Log struct {
	logger *slog.Logger
	label  string

	total   uint64
	current uint64
	lastPct uint64
}

// NewLog creates a logging indicator labelled with the phase name.
func NewLog(logger *slog.Logger, label string) *Log {
	return &Log{logger: logger, label: label}
}

func (l *Log) Init(total uint64) {
	l.total = total
	l.current = 0
	l.lastPct = 0
	l.logger.Info("Phase started.", "phase", l.label, "steps", total)
}

func (l *Log) Step(k uint64) {
	l.current += k
	if l.total == 0 {
		return
	}
	pct := l.current * 100 / l.total
	if pct/10 > l.lastPct/10 {
		l.lastPct = pct
		l.logger.Debug("Phase progress.", "phase", l.label, "percent", pct)
	}
}

func (l *Log) Refresh() {}

func (l *Log) Done() {
	l.logger.Info("Phase finished.", "phase", l.label, "steps_taken", l.current)
}
