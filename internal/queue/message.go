package queue

import "encoding/json"

// Dead-letter reasons.
const (
	ReasonBadJobTag       = "bad_job_tag"
	ReasonUnknownJob      = "unknown_job"
	ReasonUnknownDocument = "unknown_document"
	ReasonBadNotification = "bad_notification"
)

// DeadLetter is a job completion the pipeline could not correlate. It is
// parked for inspection and never retried automatically.
type DeadLetter struct {
	Reason     string `json:"reason"`
	JobID      string `json:"jobId,omitempty"`
	JobTag     string `json:"jobTag,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Body       string `json:"body,omitempty"`
	RecordedAt string `json:"recordedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg DeadLetter) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a DeadLetter.
func DecodeMessage(payload []byte) (DeadLetter, error) {
	var msg DeadLetter
	if err := json.Unmarshal(payload, &msg); err != nil {
		return DeadLetter{}, err
	}
	return msg, nil
}
