// Package gemini is a minimal client for the generateContent endpoint of the
// Gemini API: one prompt in, the generated text parts out.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultHost is the public API host used when no proxy is configured.
	DefaultHost = "generativelanguage.googleapis.com"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash"
	// APIKeyEnv is consulted when no API key is passed explicitly.
	APIKeyEnv = "GEMINI_API_KEY"

	defaultTimeout = 60 * time.Second
)

// Options configures a Client. Only the API key is required, and it may come
// from the environment instead.
type Options struct {
	APIKey string
	Model  string
	// Proxy replaces DefaultHost in the request URL when set.
	Proxy string
	// HTTPClient is shared by every call. A client with a 60 second timeout
	// is allocated when nil.
	HTTPClient *http.Client
	Log        *logrus.Logger
}

// Client sends prompts to the Gemini API. It is immutable after New and safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	proxy      string
	log        *logrus.Logger
	// scrubber hides apiKey, raw and query-escaped, in error messages.
	scrubber *strings.Replacer
}

// ResolveAPIKey returns explicit if it is set, otherwise the value of
// APIKeyEnv as reported by lookup. Empty values count as unset.
func ResolveAPIKey(explicit string, lookup func(string) (string, bool)) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if lookup != nil {
		if v, ok := lookup(APIKeyEnv); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMissingAPIKey
}

// New creates a Client. It fails with ErrMissingAPIKey before any network
// activity when no key can be resolved.
func New(opts Options) (*Client, error) {
	apiKey, err := ResolveAPIKey(opts.APIKey, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	log := opts.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		model:      model,
		proxy:      opts.Proxy,
		log:        log,
		scrubber:   strings.NewReplacer(apiKey, redacted, url.QueryEscape(apiKey), redacted),
	}, nil
}

// MustNew is like New but panics when the client cannot be configured.
func MustNew(opts Options) *Client {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string { return c.model }

// Host returns the host requests are sent to.
func (c *Client) Host() string {
	if c.proxy != "" {
		return c.proxy
	}
	return DefaultHost
}

// endpoint builds the generateContent URL. The result carries the API key
// and must not be logged.
func (c *Client) endpoint() string {
	return fmt.Sprintf("https://%s/v1beta/models/%s:generateContent?key=%s",
		c.Host(), url.PathEscape(c.model), url.QueryEscape(c.apiKey))
}

// Ask sends prompt as a single user turn and returns the text of every part
// of every candidate, in order. An empty candidate list yields an empty
// slice. A missing candidate list, a candidate without content or a part
// without text is a *SerializationError. An error envelope is a
// *NetworkError even when it arrives with a 2xx status.
//
// Errors are *NetworkError, *SerializationError or *BlockedError.
func (c *Client) Ask(ctx context.Context, prompt string) ([]string, error) {
	body, err := json.Marshal(newRequestBody(prompt))
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, c.networkError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	log := c.log.WithFields(logrus.Fields{
		"model": c.model,
		"host":  c.Host(),
	})
	log.WithField("prompt_bytes", len(prompt)).Debug("Sending generateContent request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debugf("generateContent request failed: %v", c.redact(err.Error()))
		return nil, c.networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.networkError(fmt.Errorf("failed to read response body: %w", err))
	}

	log.WithField("status", resp.StatusCode).Debug("Received generateContent response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.networkError(newStatusError(resp, raw))
	}

	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &SerializationError{Err: err}
	}

	if len(r.Candidates) == 0 && r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return nil, &BlockedError{Reason: r.PromptFeedback.BlockReason}
	}

	if r.Candidates == nil {
		if env, ok := parseAPIError(raw); ok {
			se := &StatusError{StatusCode: env.Error.Code, Status: env.Error.Status, Message: env.Error.Message}
			if se.StatusCode == 0 {
				se.StatusCode = resp.StatusCode
			}
			return nil, c.networkError(se)
		}
	}

	if err := r.validate(); err != nil {
		return nil, &SerializationError{Err: err}
	}

	return r.Texts(), nil
}

// parseAPIError reports whether raw holds an API error envelope with a
// message.
func parseAPIError(raw []byte) (apiError, bool) {
	var env apiError
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Message == "" {
		return apiError{}, false
	}
	return env, true
}

func newStatusError(resp *http.Response, raw []byte) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if env, ok := parseAPIError(raw); ok {
		se.Message = env.Error.Message
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	return se
}

func (c *Client) networkError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		se.Message = c.redact(se.Message)
		return &NetworkError{Err: err}
	}
	return &NetworkError{Err: &scrubbedError{err: err, scrubber: c.scrubber}}
}

func (c *Client) redact(s string) string { return c.scrubber.Replace(s) }

const redacted = "[REDACTED]"
