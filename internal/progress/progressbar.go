// Package progress renders byte progress for recording downloads
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressBar is a single-line terminal progress bar measured in bytes
type ProgressBar interface {
	// Update sets the number of bytes written so far
	Update(current int64)

	// SetTotal updates the expected size, zero when unknown
	SetTotal(total int64)

	// Finish renders the final state and moves to the next line
	Finish()

	// Clear erases the bar from the current line
	Clear()

	// IsFinished returns whether Finish has been called
	IsFinished() bool
}

// ProgressBarConfig holds configuration for progress bars
type ProgressBarConfig struct {
	Writer          io.Writer     // Where to write output (default: os.Stderr)
	Label           string        // Shown before the bar, usually the file name
	Width           int           // Width of the bar in characters
	ShowSpeed       bool          // Show transfer rate
	ShowETA         bool          // Show estimated time remaining
	RefreshInterval time.Duration // Minimum time between redraws
}

type progressBar struct {
	config      ProgressBarConfig
	current     int64
	total       int64
	startTime   time.Time
	lastDraw    time.Time
	lastOutput  string
	finished    bool
	mutex       sync.Mutex
	speedBuffer []speedSample
}

type speedSample struct {
	timestamp time.Time
	value     int64
}

// NewProgressBar creates a progress bar for total bytes
func NewProgressBar(total int64, config ProgressBarConfig) ProgressBar {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	if config.Width <= 0 {
		config.Width = 30
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 100 * time.Millisecond
	}

	now := time.Now()
	return &progressBar{
		config:      config,
		total:       total,
		startTime:   now,
		lastDraw:    now.Add(-config.RefreshInterval),
		speedBuffer: make([]speedSample, 0, 10),
	}
}

// Update sets the current progress value, redrawing at most once per RefreshInterval
func (pb *progressBar) Update(current int64) {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if pb.finished {
		return
	}
	if current < 0 {
		current = 0
	}
	pb.current = current

	now := time.Now()
	if now.Sub(pb.lastDraw) >= pb.config.RefreshInterval {
		pb.addSpeedSample(now, current)
		pb.display(now)
		pb.lastDraw = now
	}
}

// SetTotal updates the total expected value
func (pb *progressBar) SetTotal(total int64) {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()
	pb.total = total
}

// Finish completes the progress bar and shows final state
func (pb *progressBar) Finish() {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if pb.finished {
		return
	}
	pb.finished = true
	if pb.total > 0 && pb.current < pb.total {
		pb.current = pb.total
	}
	pb.display(time.Now())
	fmt.Fprint(pb.config.Writer, "\n")
}

// Clear clears the progress bar from the display
func (pb *progressBar) Clear() {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()
	fmt.Fprint(pb.config.Writer, "\r\033[K")
	pb.lastOutput = ""
}

// IsFinished returns whether the progress bar is finished
func (pb *progressBar) IsFinished() bool {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()
	return pb.finished
}

// addSpeedSample keeps the last 10 samples for rate calculation
func (pb *progressBar) addSpeedSample(timestamp time.Time, value int64) {
	pb.speedBuffer = append(pb.speedBuffer, speedSample{timestamp: timestamp, value: value})
	if len(pb.speedBuffer) > 10 {
		pb.speedBuffer = pb.speedBuffer[1:]
	}
}

// speed returns bytes per second over the sample window
func (pb *progressBar) speed() float64 {
	if len(pb.speedBuffer) < 2 {
		return 0
	}
	first := pb.speedBuffer[0]
	last := pb.speedBuffer[len(pb.speedBuffer)-1]

	elapsed := last.timestamp.Sub(first.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(last.value-first.value) / elapsed
}

func (pb *progressBar) eta() time.Duration {
	if pb.total <= 0 || pb.current >= pb.total {
		return 0
	}
	speed := pb.speed()
	if speed <= 0 {
		return 0
	}
	return time.Duration(float64(pb.total-pb.current) / speed * float64(time.Second))
}

// render builds the bar text without writing it
func (pb *progressBar) render(now time.Time) string {
	var parts []string
	if pb.config.Label != "" {
		parts = append(parts, pb.config.Label)
	}

	if pb.total > 0 {
		percent := float64(pb.current) / float64(pb.total) * 100
		if percent > 100 {
			percent = 100
		}
		parts = append(parts,
			"["+createBar(percent, pb.config.Width)+"]",
			fmt.Sprintf("%3.0f%%", percent),
			"| "+humanize.Bytes(uint64(pb.current))+"/"+humanize.Bytes(uint64(pb.total)),
		)
	} else {
		parts = append(parts, humanize.Bytes(uint64(pb.current)))
	}

	if pb.config.ShowSpeed {
		parts = append(parts, "| "+humanize.Bytes(uint64(pb.speed()))+"/s")
	}
	if pb.config.ShowETA && !pb.finished {
		parts = append(parts, "| ETA "+formatDuration(pb.eta()))
	}
	if pb.finished {
		parts = append(parts, "| "+formatDuration(now.Sub(pb.startTime)))
	}

	return strings.Join(parts, " ")
}

func (pb *progressBar) display(now time.Time) {
	output := pb.render(now)
	if output != pb.lastOutput {
		fmt.Fprintf(pb.config.Writer, "\r\033[K%s", output)
		pb.lastOutput = output
	}
}

// createBar draws width cells filled to percent
func createBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatDuration formats durations as 1h2m3s, 2m3s or 3s
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
