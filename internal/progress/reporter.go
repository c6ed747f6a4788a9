package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/curtbushko/zoom-recordings/internal/logging"
	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

// ErrorItem records a recording that failed to download
type ErrorItem struct {
	Item      string    `json:"item"`
	ErrorMsg  string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the outcome of a download run
type Summary struct {
	TotalRecordings     int           `json:"total_recordings"`
	CompletedRecordings int           `json:"completed_recordings"`
	FailedRecordings    int           `json:"failed_recordings"`
	CompletedFiles      int           `json:"completed_files"`
	TotalBytes          int64         `json:"total_bytes"`
	ErrorItems          []ErrorItem   `json:"error_items"`
	TotalDuration       time.Duration `json:"-"`
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
}

// ReporterConfig holds configuration for progress reporting
type ReporterConfig struct {
	ShowProgressBar bool      // Draw a bar per file while it downloads
	Writer          io.Writer // Where to write progress output (default: os.Stderr)
	ShowSpeed       bool
	ShowETA         bool
}

// Reporter draws per-file bars from download progress callbacks and
// aggregates a run summary. It is safe for concurrent use.
type Reporter struct {
	config    ReporterConfig
	logger    logging.Logger
	total     int
	bars      map[string]ProgressBar
	written   map[string]int64
	summary   Summary
	startTime time.Time
	mutex     sync.Mutex
}

// NewReporter creates a reporter for a run of total recordings
func NewReporter(total int, config ReporterConfig, logger logging.Logger) *Reporter {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Reporter{
		config:    config,
		logger:    logger,
		total:     total,
		bars:      make(map[string]ProgressBar),
		written:   make(map[string]int64),
		startTime: time.Now(),
	}
}

// OnProgress matches zoom.ProgressFunc and is registered with zoom.WithProgress
func (r *Reporter) OnProgress(file zoom.RecordingFile, written, total int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := fileKey(file)
	r.summary.TotalBytes += written - r.written[key]
	r.written[key] = written

	if !r.config.ShowProgressBar {
		return
	}

	bar, ok := r.bars[key]
	if !ok {
		bar = NewProgressBar(total, ProgressBarConfig{
			Writer:    r.config.Writer,
			Label:     fmt.Sprintf("%s %s", file.RecordingType, file.FileType),
			ShowSpeed: r.config.ShowSpeed,
			ShowETA:   r.config.ShowETA,
		})
		r.bars[key] = bar
	}
	bar.Update(written)
	if total > 0 && written >= total {
		bar.Finish()
	}
}

// RecordingDone closes the bars of recording's files and records the outcome
func (r *Reporter) RecordingDone(recording zoom.Recording, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, file := range recording.RecordingFiles {
		key := fileKey(file)
		if bar, ok := r.bars[key]; ok {
			switch {
			case bar.IsFinished():
			case err != nil:
				bar.Clear()
			default:
				bar.Finish()
			}
			delete(r.bars, key)
		}
		delete(r.written, key)
	}

	if err != nil {
		r.summary.FailedRecordings++
		r.summary.ErrorItems = append(r.summary.ErrorItems, ErrorItem{
			Item:      recording.Topic + " (" + recording.UUID + ")",
			ErrorMsg:  err.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	r.summary.CompletedRecordings++
	r.summary.CompletedFiles += len(recording.RecordingFiles)
}

// Finish prints and returns the run summary
func (r *Reporter) Finish(ctx context.Context) *Summary {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	summary := r.snapshot()
	r.displaySummary(summary)

	r.logger.InfoWithContext(ctx, "Download run completed: %d total, %d completed, %d failed",
		summary.TotalRecordings, summary.CompletedRecordings, summary.FailedRecordings)
	r.logger.LogPerformance(logging.PerformanceMetrics{
		Operation:      "download_run",
		Duration:       summary.TotalDuration,
		BytesProcessed: summary.TotalBytes,
		Success:        summary.FailedRecordings == 0,
		Metadata: map[string]interface{}{
			"total_recordings": summary.TotalRecordings,
			"completed":        summary.CompletedRecordings,
			"failed":           summary.FailedRecordings,
			"files":            summary.CompletedFiles,
		},
	})

	return summary
}

// GetSummary returns the summary so far
func (r *Reporter) GetSummary() *Summary {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshot()
}

func (r *Reporter) snapshot() *Summary {
	summary := r.summary
	summary.TotalRecordings = r.total
	summary.ErrorItems = append([]ErrorItem(nil), r.summary.ErrorItems...)
	summary.StartTime = r.startTime
	summary.EndTime = time.Now()
	summary.TotalDuration = summary.EndTime.Sub(summary.StartTime)
	return &summary
}

func (r *Reporter) displaySummary(summary *Summary) {
	w := r.config.Writer
	fmt.Fprintf(w, "Downloaded %d of %d recordings (%d files, %s) in %s\n",
		summary.CompletedRecordings,
		summary.TotalRecordings,
		summary.CompletedFiles,
		humanize.Bytes(uint64(summary.TotalBytes)),
		formatDuration(summary.TotalDuration),
	)
	if summary.FailedRecordings == 0 {
		return
	}
	fmt.Fprintf(w, "%d recordings failed:\n", summary.FailedRecordings)
	for _, item := range summary.ErrorItems {
		fmt.Fprintf(w, "  %s: %s\n", item.Item, item.ErrorMsg)
	}
}

func fileKey(file zoom.RecordingFile) string {
	if file.ID != "" {
		return file.ID
	}
	return file.DownloadURL
}
