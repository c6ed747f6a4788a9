package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// TimestampLayout is the fixed UTC layout Zoom uses for recording timestamps
const TimestampLayout = "2006-01-02T15:04:05Z"

// Timestamp is a time.Time that only accepts TimestampLayout on decode
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses a TimestampLayout string, rejecting null and any other format
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return &ParseError{Field: "timestamp", Value: "null", Err: ErrInvalidTimestamp}
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ParseError{Field: "timestamp", Value: string(data), Err: ErrInvalidTimestamp}
	}

	// time.Parse accepts fractional seconds the layout does not mention
	parsed, err := time.Parse(TimestampLayout, raw)
	if err != nil || parsed.Format(TimestampLayout) != raw {
		return &ParseError{Field: "timestamp", Value: raw, Err: ErrInvalidTimestamp}
	}

	t.Time = parsed
	return nil
}

// MarshalJSON writes the timestamp back in TimestampLayout
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

// RecordingFile represents a single downloadable artifact within a meeting recording
type RecordingFile struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meeting_id"`
	RecordingStart Timestamp `json:"recording_start"`
	RecordingEnd   Timestamp `json:"recording_end"`
	FileType       string    `json:"file_type"`
	FileExtension  string    `json:"file_extension"`
	FileSize       int64     `json:"file_size"`
	PlayURL        string    `json:"play_url"`
	DownloadURL    string    `json:"download_url"`
	Status         string    `json:"status"`
	RecordingType  string    `json:"recording_type"`

	fetcher *Fetcher
}

// UnmarshalJSON decodes a recording file, requiring recording_start and recording_end
func (f *RecordingFile) UnmarshalJSON(data []byte) error {
	type plain RecordingFile
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := requireTimestamp("recording_start", decoded.RecordingStart); err != nil {
		return err
	}
	if err := requireTimestamp("recording_end", decoded.RecordingEnd); err != nil {
		return err
	}
	*f = RecordingFile(decoded)
	return nil
}

// Save downloads this file to path, appending the file extension when missing
func (f RecordingFile) Save(ctx context.Context, path string, verbose bool) error {
	if f.fetcher == nil {
		return ErrDetached
	}
	return f.fetcher.Save(ctx, f, path, verbose)
}

// Recording represents a meeting recording with all associated files
type Recording struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	AccountID      string          `json:"account_id"`
	HostID         string          `json:"host_id"`
	Topic          string          `json:"topic"`
	Type           int             `json:"type"`
	StartTime      Timestamp       `json:"start_time"`
	Timezone       string          `json:"timezone"`
	Duration       int             `json:"duration"`
	TotalSize      int64           `json:"total_size"`
	RecordingCount int             `json:"recording_count"`
	ShareURL       string          `json:"share_url"`
	RecordingFiles []RecordingFile `json:"recording_files"`

	fetcher *Fetcher
}

// UnmarshalJSON decodes a recording, requiring start_time
func (r *Recording) UnmarshalJSON(data []byte) error {
	type plain Recording
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := requireTimestamp("start_time", decoded.StartTime); err != nil {
		return err
	}
	*r = Recording(decoded)
	return nil
}

func requireTimestamp(field string, ts Timestamp) error {
	if ts.IsZero() {
		return &ParseError{Field: field, Err: ErrInvalidTimestamp}
	}
	return nil
}

// Save downloads every file of the recording under pathPrefix.
// Each file appends its own extension to the shared prefix.
func (r Recording) Save(ctx context.Context, pathPrefix string, verbose bool) error {
	if r.fetcher == nil {
		return ErrDetached
	}
	return r.fetcher.SaveAll(ctx, r, pathPrefix, verbose)
}

// attach binds the recording and its files to the fetcher used for downloads
func (r *Recording) attach(fetcher *Fetcher) {
	r.fetcher = fetcher
	for i := range r.RecordingFiles {
		r.RecordingFiles[i].fetcher = fetcher
	}
}

// ListRecordingsResponse represents one page of the list recordings endpoint
type ListRecordingsResponse struct {
	From          string      `json:"from"`
	To            string      `json:"to"`
	PageCount     int         `json:"page_count"`
	PageSize      int         `json:"page_size"`
	TotalRecords  int         `json:"total_records"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	Meetings      []Recording `json:"meetings"`
}
