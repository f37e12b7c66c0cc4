package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventAnalyze EventType = "analyze"
	EventHash    EventType = "hash"
	EventCluster EventType = "cluster"
	EventPublish EventType = "publish"
	EventFilter  EventType = "filter"
	EventSkip    EventType = "skip"
	EventError   EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the analysis pipeline
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	PhotoID   string            `json:"photo_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	ClusterID string            `json:"cluster_id,omitempty"`
	BlurScore float64           `json:"blur_score,omitempty"`
	Verdict   string            `json:"verdict,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug).
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// NullLogger returns a logger that discards all events
func NullLogger() *EventLogger {
	return &EventLogger{}
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogAnalyze logs a per-photo quality analysis event
func (l *EventLogger) LogAnalyze(photoID string, blurScore float64, verdict string) error {
	return l.Log(&Event{
		Level:     LevelDebug,
		Event:     EventAnalyze,
		PhotoID:   photoID,
		BlurScore: blurScore,
		Verdict:   verdict,
	})
}

// LogUnanalyzable logs a photo that failed analysis and was skipped
func (l *EventLogger) LogUnanalyzable(photoID string, err error) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventSkip,
		PhotoID: photoID,
		Error:   err.Error(),
	})
}

// LogCluster logs a cluster creation event
func (l *EventLogger) LogCluster(clusterID, representative string, memberCount int, reason string) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventCluster,
		ClusterID: clusterID,
		PhotoID:   representative,
		Reason:    reason,
		Extra: map[string]string{
			"member_count": fmt.Sprintf("%d", memberCount),
		},
	})
}

// LogPublish logs a session publication event
func (l *EventLogger) LogPublish(sessionID, fingerprint string, photoCount, clusterCount int) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventPublish,
		SessionID: sessionID,
		Extra: map[string]string{
			"fingerprint":   fingerprint,
			"photo_count":   fmt.Sprintf("%d", photoCount),
			"cluster_count": fmt.Sprintf("%d", clusterCount),
		},
	})
}

// LogFilter logs a filtered-session derivation event
func (l *EventLogger) LogFilter(sessionID string, clusterCount, photoCount int) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventFilter,
		SessionID: sessionID,
		Extra: map[string]string{
			"cluster_count": fmt.Sprintf("%d", clusterCount),
			"photo_count":   fmt.Sprintf("%d", photoCount),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, photoID string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		PhotoID: photoID,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
