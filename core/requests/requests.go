// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package requests talks to pixiv: the ajax API and the image CDN.
package requests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/audit"
	"codeberg.org/phixiv/phixiv/core/idgen"
	"codeberg.org/phixiv/phixiv/core/metrics"
	"codeberg.org/phixiv/phixiv/server/request_context"
	"codeberg.org/phixiv/phixiv/server/utils"
)

const (
	// PixivReferer is required by i.pximg.net and accepted by the ajax API.
	PixivReferer = "https://www.pixiv.net/"

	// iOSUserAgent identifies image requests as coming from the pixiv iOS app.
	iOSUserAgent = "PixivIOSApp/7.13.3 (iOS 14.6; iPhone13,2)"

	// maxBodyBytes bounds how much of an API response is read.
	maxBodyBytes = 8 << 20
)

// Client performs requests to pixiv with the headers configured for this deployment.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	userAgent string
	cookie    string
}

// NewClient returns a Client configured from cfg. A nil httpClient selects
// a shared client with the configured upstream timeout.
func NewClient(cfg *config.ServerConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(cfg.Upstream.Timeout)
	}

	c := &Client{
		httpClient: httpClient,
		userAgent:  cfg.Upstream.UserAgent,
		cookie:     cfg.Upstream.Cookie,
	}

	if c.userAgent == "" {
		c.userAgent = config.DefaultUserAgent
	}

	if cfg.Upstream.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Upstream.RateLimit), max(cfg.Upstream.RateBurst, 1))
	}

	return c
}

// GetJSONBody makes a GET request to the pixiv ajax API and returns the
// "body" field of the response envelope.
//
// Every failure is an *UpstreamError. No request is retried.
func (c *Client) GetJSONBody(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	body, err := c.getJSON(ctx, url)

	outcome := metrics.OutcomeOK
	if err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) {
			outcome = upstreamErr.Kind.String()
		}
	}

	metrics.RecordUpstream(outcome, time.Since(start).Seconds())

	return body, err
}

func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	c.setDeviceHeaders(req)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "PHPSESSID", Value: c.cookie})
	}

	resp, body, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, URL: url, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := gjson.GetBytes(body, "message").String()
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}

		return nil, &UpstreamError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    message,
			URL:        url,
			Err:        errAPIResponseError,
		}
	}

	payload, err := processJSONResponse(body)
	if err != nil {
		kind := KindSchema
		if errors.Is(err, errAPIResponseError) {
			kind = KindStatus
		}

		return nil, &UpstreamError{Kind: kind, StatusCode: resp.StatusCode, URL: url, Err: err}
	}

	return payload, nil
}

// processJSONResponse unwraps pixiv's {"error": bool, "message": string, "body": ...} envelope.
func processJSONResponse(respBody []byte) ([]byte, error) {
	if !gjson.ValidBytes(respBody) {
		return nil, errInvalidJSON
	}

	result := gjson.ParseBytes(respBody)

	if result.Get("error").Bool() {
		message := result.Get("message").String()
		if message == "" {
			message = "API response contained an error with no message"
		}

		return nil, fmt.Errorf("%w: %s", errAPIResponseError, message)
	}

	body := result.Get("body")
	if !body.Exists() || !body.IsObject() {
		return nil, fmt.Errorf("%w: missing body object", errInvalidJSON)
	}

	return []byte(body.Raw), nil
}

// Proxy fetches target from the pixiv image CDN and streams it to w with
// the given Cache-Control max-age. Response headers other than the content
// description are not forwarded.
func (c *Client) Proxy(ctx context.Context, w http.ResponseWriter, target string, maxAge time.Duration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", target, err)
	}

	c.setDeviceHeaders(req)
	req.Header.Set("User-Agent", iOSUserAgent)
	req.Header.Set("Referer", PixivReferer)

	span := audit.Span{
		Destination: audit.ToPximg,
		RequestID:   request_context.FromContext(ctx).RequestID,
		Method:      req.Method,
		URL:         target,
	}

	_ = span.Begin(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.End()
		span.Error = err
		span.Log()

		if isContextCanceled(err) {
			return nil
		}

		return &UpstreamError{Kind: KindTransport, URL: target, Err: err}
	}
	defer resp.Body.Close()

	for _, name := range []string{"Content-Type", "Content-Length", "Last-Modified", "ETag"} {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}

	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	w.WriteHeader(resp.StatusCode)

	_, err = io.Copy(w, resp.Body)

	span.StatusCode = resp.StatusCode
	span.Error = err
	span.End()
	span.Log()

	if err != nil && !isContextCanceled(err) {
		log.Ctx(ctx).Debug().Err(err).Str("url", target).Msg("Image proxy copy interrupted")
	}

	return nil
}

func (c *Client) setDeviceHeaders(req *http.Request) {
	req.Header.Set("App-Os", "iOS")
	req.Header.Set("App-Os-Version", "14.6")
	req.Header.Set("Referer", PixivReferer)
}

// sendRequest waits for the rate limiter, executes req and reads the whole
// body, recording an audit span.
func (c *Client) sendRequest(ctx context.Context, req *http.Request) (_ *http.Response, _ []byte, err error) {
	span := audit.Span{
		Destination: audit.ToPixiv,
		RequestID:   request_context.FromContext(ctx).RequestID + "-" + idgen.Make(),
		Method:      req.Method,
		URL:         req.URL.String(),
	}

	defer func() {
		span.Error = err
		span.End()
		span.Log()
	}()

	_ = span.Begin(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	span.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.Body = body

	return resp, body, nil
}

// isContextCanceled reports whether err comes from the client going away.
func isContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
