package csvutil

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/username/tradeledger/src/config"
	"github.com/username/tradeledger/src/logger"
)

const DefaultSkipLogBurst = 20

// SkipLogger reports skipped rows without letting a large malformed file
// flood the log: after the burst, warnings are released at one per second
// and the remainder is summarized by Close.
type SkipLogger struct {
	broker     string
	limiter    *rate.Limiter
	skipped    int
	suppressed int
}

func NewSkipLogger(broker string) *SkipLogger {
	burst := DefaultSkipLogBurst
	if config.Cfg != nil && config.Cfg.SkippedRowLogBurst > 0 {
		burst = config.Cfg.SkippedRowLogBurst
	}
	return NewSkipLoggerWithBurst(broker, burst)
}

func NewSkipLoggerWithBurst(broker string, burst int) *SkipLogger {
	return &SkipLogger{
		broker:  broker,
		limiter: rate.NewLimiter(rate.Every(time.Second), burst),
	}
}

// Skip records a skipped row and logs it if the limiter allows.
func (s *SkipLogger) Skip(line int, reason string, args ...any) {
	s.skipped++
	if !s.limiter.Allow() {
		s.suppressed++
		return
	}
	attrs := append([]any{"broker", s.broker, "line", line, "reason", reason}, args...)
	logger.L.Warn("Skipping CSV row", attrs...)
}

func (s *SkipLogger) Skipped() int    { return s.skipped }
func (s *SkipLogger) Suppressed() int { return s.suppressed }

// Close emits the suppressed-warning summary, if any.
func (s *SkipLogger) Close() {
	if s.suppressed > 0 {
		logger.L.Warn("Suppressed skipped-row warnings", "broker", s.broker, "suppressed", s.suppressed, "skipped", s.skipped)
	}
}
