package ocr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadNotification is returned when a completion payload is not a job notification.
var ErrBadNotification = errors.New("malformed job completion notification")

// Completion is the provider's job-completion notification.
type Completion struct {
	JobID     string
	Status    JobStatus
	JobTag    string
	API       string
	Bucket    string
	Key       string
	Timestamp time.Time
}

// Succeeded reports whether the job produced usable text.
func (c Completion) Succeeded() bool {
	return c.Status == JobSucceeded || c.Status == JobPartialSuccess
}

type completionWire struct {
	JobID            string `json:"JobId"`
	Status           string `json:"Status"`
	API              string `json:"API"`
	JobTag           string `json:"JobTag"`
	Timestamp        int64  `json:"Timestamp"`
	DocumentLocation struct {
		S3ObjectName string `json:"S3ObjectName"`
		S3Bucket     string `json:"S3Bucket"`
	} `json:"DocumentLocation"`
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// ParseCompletion decodes a notification delivered either raw or wrapped in an
// SNS envelope (an SQS subscription without raw delivery).
func ParseCompletion(body []byte) (Completion, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Completion{}, fmt.Errorf("%w: empty body", ErrBadNotification)
	}

	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if env.Type == "Notification" && env.Message != "" {
		body = []byte(env.Message)
	}

	var w completionWire
	if err := json.Unmarshal(body, &w); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrBadNotification, err)
	}
	if strings.TrimSpace(w.JobID) == "" {
		return Completion{}, fmt.Errorf("%w: missing JobId", ErrBadNotification)
	}
	if strings.TrimSpace(w.Status) == "" {
		return Completion{}, fmt.Errorf("%w: missing Status", ErrBadNotification)
	}

	c := Completion{
		JobID:  w.JobID,
		Status: JobStatus(strings.ToUpper(strings.TrimSpace(w.Status))),
		JobTag: strings.TrimSpace(w.JobTag),
		API:    w.API,
		Bucket: w.DocumentLocation.S3Bucket,
		Key:    w.DocumentLocation.S3ObjectName,
	}
	if w.Timestamp > 0 {
		c.Timestamp = time.UnixMilli(w.Timestamp).UTC()
	}
	return c, nil
}

// EncodeCompletion renders c in the provider's raw notification format. The
// local OCR backend and tests use it to emulate callbacks.
func EncodeCompletion(c Completion) ([]byte, error) {
	var w completionWire
	w.JobID = c.JobID
	w.Status = string(c.Status)
	w.API = c.API
	w.JobTag = c.JobTag
	if !c.Timestamp.IsZero() {
		w.Timestamp = c.Timestamp.UnixMilli()
	}
	w.DocumentLocation.S3Bucket = c.Bucket
	w.DocumentLocation.S3ObjectName = c.Key
	return json.Marshal(w)
}
