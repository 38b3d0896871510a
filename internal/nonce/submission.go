// Package nonce issues widget nonces and keeps the OAuth2 state and tokens
// bound to them.
package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Err is one validation failure, serialized to callers as-is.
type Err struct {
	Details string `json:"details,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

func (e *Err) Error() string { return e.Reason + ": " + e.Details }

// WrappedError collects every failure from one validation pass.
type WrappedError struct {
	Errors []*Err `json:"errors"`
}

func (w *WrappedError) Error() string {
	reasons := make([]string, 0, len(w.Errors))
	for _, e := range w.Errors {
		reasons = append(reasons, e.Reason)
	}
	return "invalid submission: " + strings.Join(reasons, "; ")
}

var (
	ErrBlankSubmission = &Err{Reason: "invalid data", Details: "expecting a non-blank submission"}
	ErrBlankNonce      = &Err{Reason: "invalid/blank nonce", Details: "expecting a valid nonce"}
	ErrBlankAPIKey     = &Err{Reason: "invalid/blank apiKey", Details: "expecting a valid apiKey"}
	ErrUnknownNonce    = &Err{Reason: "unknown nonce", Details: "nonce was not issued for this apiKey"}

	ErrFailedToParseSubmission = errors.New("failed to parse submission")
)

// Submission is what the widget and site owners post to the backend.
type Submission struct {
	SourceIP string `json:"source_ip,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// Lookup checks that a nonce was issued for an API key and consumes it.
type Lookup interface {
	ValidateAndDestroy(ctx context.Context, apiKey, nonce string) error
}

// Validate reports every problem with s. With a non-nil lookup the nonce is
// also checked against the issuing key and consumed.
func (s *Submission) Validate(ctx context.Context, lookup Lookup) *WrappedError {
	if s == nil {
		return &WrappedError{Errors: []*Err{ErrBlankSubmission}}
	}

	var errs []*Err
	if strings.TrimSpace(s.Nonce) == "" {
		errs = append(errs, ErrBlankNonce)
	}
	if err := s.ValidateAPIKey(); err != nil {
		errs = append(errs, err)
	} else if len(errs) == 0 && lookup != nil {
		if err := lookup.ValidateAndDestroy(ctx, s.APIKey, s.Nonce); err != nil {
			errs = append(errs, &Err{Reason: ErrUnknownNonce.Reason, Details: ErrUnknownNonce.Details, Meta: err.Error()})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &WrappedError{Errors: errs}
}

// ValidateAPIKey checks that s carries an API key.
func (s *Submission) ValidateAPIKey() *Err {
	if s == nil {
		return ErrBlankSubmission
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return ErrBlankAPIKey
	}
	return nil
}

// ParseSubmission decodes one submission from r. An all-blank submission is
// rejected.
func ParseSubmission(r io.Reader) (*Submission, error) {
	subm := new(Submission)
	if err := json.NewDecoder(r).Decode(subm); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrFailedToParseSubmission
		}
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	if *subm == (Submission{}) {
		return nil, ErrFailedToParseSubmission
	}
	return subm, nil
}
