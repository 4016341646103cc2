// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies an UpstreamError.
type ErrorKind int

const (
	// KindTransport means pixiv could not be reached or the body could not be read.
	KindTransport ErrorKind = iota

	// KindStatus means pixiv answered with a non-success status or an error envelope.
	KindStatus

	// KindSchema means the response did not have the expected shape.
	KindSchema
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

var (
	errAPIResponseError = errors.New("API response indicated error")
	errInvalidJSON      = errors.New("response contained invalid JSON")
)

// UpstreamError is returned for every failed request to pixiv.
type UpstreamError struct {
	Kind ErrorKind

	// StatusCode is the HTTP status pixiv answered with, or 0 when no response was received.
	StatusCode int

	// Message is the "message" field of pixiv's error envelope, if any.
	Message string

	URL string
	Err error
}

// NewSchemaError wraps err as a KindSchema failure of the response from url.
func NewSchemaError(url string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindSchema, URL: url, Err: err}
}

func (e *UpstreamError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "upstream %s error", e.Kind)

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status code: %d)", e.StatusCode)
	}

	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether pixiv said the resource does not exist.
func (e *UpstreamError) IsNotFound() bool {
	return e.Kind == KindStatus && e.StatusCode == http.StatusNotFound
}
