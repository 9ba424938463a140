package format

import (
	"fmt"
	"strings"
	"time"
)

// maxETA caps estimates made from very slow early progress.
const maxETA = 24 * time.Hour

// ProgressWithETA tracks a single progress value in [0, 1] and estimates the
// remaining time from an exponentially smoothed rate. A value lower than the
// previous one is taken as a restart. It is not safe for concurrent use.
type ProgressWithETA struct {
	startTime    time.Time
	lastUpdate   time.Time
	progress     float64
	progressRate float64 // progress per second
	now          func() time.Time
}

// NewProgressWithETA starts tracking at zero progress.
func NewProgressWithETA() *ProgressWithETA {
	p := &ProgressWithETA{now: time.Now}
	p.reset()
	return p
}

func (p *ProgressWithETA) reset() {
	p.startTime = p.now()
	p.lastUpdate = p.startTime
	p.progress = 0
	p.progressRate = 0
}

// Update records progress and returns the clamped value with the current ETA.
func (p *ProgressWithETA) Update(progress float64) (float64, time.Duration) {
	progress = min(max(progress, 0), 1)
	if progress < p.progress {
		p.reset()
	}
	now := p.now()
	if dt := now.Sub(p.lastUpdate).Seconds(); dt > 0 && progress > p.progress {
		rate := (progress - p.progress) / dt
		if p.progressRate == 0 {
			p.progressRate = rate
		} else {
			p.progressRate = 0.3*rate + 0.7*p.progressRate
		}
		p.lastUpdate = now
	}
	p.progress = progress
	return progress, p.GetETA()
}

// Progress returns the last recorded value.
func (p *ProgressWithETA) Progress() float64 { return p.progress }

// Elapsed returns the time since the last restart.
func (p *ProgressWithETA) Elapsed() time.Duration { return p.now().Sub(p.startTime) }

// GetETA returns the estimated remaining time, or 0 when unknown or done.
func (p *ProgressWithETA) GetETA() time.Duration {
	if p.progressRate <= 0 || p.progress >= 1 {
		return 0
	}
	secs := (1 - p.progress) / p.progressRate
	if secs > maxETA.Seconds() {
		return maxETA
	}
	return time.Duration(secs * float64(time.Second))
}

// ProgressBar renders progress as a bar of length cells.
func ProgressBar(progress float64, length int) string {
	progress = min(max(progress, 0), 1)
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

// FormatProgressBarWithETA renders "[bar]  42.0% ETA: 1m3s".
func FormatProgressBarWithETA(progress float64, eta time.Duration, width int) string {
	return fmt.Sprintf("[%s] %5.1f%% ETA: %s", ProgressBar(progress, width), min(max(progress, 0), 1)*100, FormatETA(eta))
}
