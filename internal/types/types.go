package types

import (
	"errors"
	"fmt"
	"time"
)

// NoneFound is the value a text field takes when the page did not render it.
const NoneFound = "(none found)"

// Record is an immutable snapshot of one post, taken per analysis attempt.
type Record struct {
	ID               string `json:"id"`
	AuthorName       string `json:"authorName"`
	AuthorHandle     string `json:"authorHandle"`
	BodyText         string `json:"bodyText"`
	ImageURL         string `json:"imageUrl"`
	TimestampISO     string `json:"timestampIso"`
	TimestampDisplay string `json:"timestampDisplay"`
	CapturedAtMS     int64  `json:"capturedAtMs"`
}

// CapturedAt returns the capture time as a time.Time.
func (r Record) CapturedAt() time.Time {
	return time.UnixMilli(r.CapturedAtMS)
}

// Coordinates is a point on the 20x20 compass plane.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Judgment is a validated, clamped provider answer.
type Judgment struct {
	Coordinates Coordinates `json:"coordinates"`
	Keywords    string      `json:"keywords"`
	Reasoning   string      `json:"reasoning"`
}

// Message types exchanged between the overlay and the analysis worker.
const (
	MessageTweetInfo      = "tweet_info_cohesive"
	MessageAnalysisResult = "analysis_result"
)

// TweetInfo is the payload of a tweet_info_cohesive message.
type TweetInfo struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Cohesive  string `json:"cohesive"`
	Fields    Record `json:"fields"`
	TS        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// AnalysisResult is the payload of an analysis_result message. It is also
// the value persisted in the result cache.
type AnalysisResult struct {
	OK          bool      `json:"ok"`
	TweetID     string    `json:"tweetId"`
	RequestID   string    `json:"request_id,omitempty"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	Keywords    string    `json:"keywords,omitempty"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
}

// ErrorKind classifies a failed analysis attempt.
type ErrorKind string

const (
	KindUnitNotFound        ErrorKind = "unit_not_found"
	KindCredentialMissing   ErrorKind = "credential_missing"
	KindProviderRejected    ErrorKind = "provider_rejected"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindMalformedJudgment   ErrorKind = "malformed_judgment"
	KindTimeout             ErrorKind = "timeout"
)

// AnalysisError is the single error type surfaced for a failed attempt.
type AnalysisError struct {
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is matches another *AnalysisError by kind, so sentinels below work with errors.Is.
func (e *AnalysisError) Is(target error) bool {
	var t *AnalysisError
	if errors.As(target, &t) {
		return t.Err == nil && t.Kind == e.Kind
	}
	return false
}

var (
	ErrUnitNotFound        = &AnalysisError{Kind: KindUnitNotFound}
	ErrCredentialMissing   = &AnalysisError{Kind: KindCredentialMissing}
	ErrProviderRejected    = &AnalysisError{Kind: KindProviderRejected}
	ErrProviderUnavailable = &AnalysisError{Kind: KindProviderUnavailable}
	ErrMalformedJudgment   = &AnalysisError{Kind: KindMalformedJudgment}
	ErrTimeout             = &AnalysisError{Kind: KindTimeout}
)

// NewError wraps err with the given kind.
func NewError(kind ErrorKind, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Err: err}
}

// KindOf returns the kind of err, defaulting to provider_unavailable for
// errors that were never classified.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindProviderUnavailable
}

// Guidance is the user-facing message shown on the result surface.
func (k ErrorKind) Guidance() string {
	switch k {
	case KindUnitNotFound:
		return "Could not find this post on the page anymore."
	case KindCredentialMissing:
		return "No API key is configured. Run `stereo set-key` or add api_key to config.toml."
	case KindProviderRejected:
		return "The analysis provider rejected the request. Check that your API key is valid."
	case KindMalformedJudgment:
		return "The analysis provider returned an unexpected response. Try again."
	case KindTimeout:
		return "The analysis took too long. Click the compass to try again."
	default:
		return "The analysis provider could not be reached. Try again later."
	}
}
