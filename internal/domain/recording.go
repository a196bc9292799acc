package domain

import "time"

type RecordingType string

const (
	RecordingAudio RecordingType = "audio"
	RecordingVideo RecordingType = "video"
	RecordingBoth  RecordingType = "both"
)

type RecordingStatus string

const (
	RecordingRunning    RecordingStatus = "recording"
	RecordingProcessing RecordingStatus = "processing"
	RecordingCompleted  RecordingStatus = "completed"
)

// RecordingJob is the live state of an in-progress recording. At most one
// exists per meeting; it is removed from the active set once finalized.
type RecordingJob struct {
	ID        string          `json:"recordingId"`
	MeetingID string          `json:"meetingId"`
	StartedBy UserID          `json:"startedBy"`
	Type      RecordingType   `json:"type"`
	Status    RecordingStatus `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   *time.Time      `json:"endTime,omitempty"`
}

func ParseRecordingType(s string) (RecordingType, error) {
	switch RecordingType(s) {
	case RecordingAudio, RecordingVideo, RecordingBoth:
		return RecordingType(s), nil
	case "":
		return RecordingBoth, nil
	}
	return "", Validation("unknown recording type")
}
