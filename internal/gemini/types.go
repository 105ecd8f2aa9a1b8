package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RoleUser is the only role this client ever sends.
const RoleUser = "user"

// Part is a single text fragment of a content block.
type Part struct {
	Text string `json:"text"`
}

var errPartWithoutText = errors.New("part has no text")

// UnmarshalJSON rejects parts that carry no text field, such as function
// calls or inline data.
func (p *Part) UnmarshalJSON(b []byte) error {
	var raw struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Text == nil {
		return errPartWithoutText
	}
	p.Text = *raw.Text
	return nil
}

// Content is a block of parts produced by one role.
type Content struct {
	Parts []Part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

// RequestBody is the outgoing generateContent payload.
type RequestBody struct {
	Contents []Content `json:"contents"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// PromptFeedback is set by the API when the prompt itself was rejected.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// Response is the incoming generateContent payload. Candidates is nil when
// the field was absent or null.
type Response struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// apiError is the envelope the API uses for errors. Proxies sometimes send
// it with a 2xx status.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// newRequestBody wraps prompt as a single user turn with a single part.
func newRequestBody(prompt string) RequestBody {
	return RequestBody{
		Contents: []Content{{
			Parts: []Part{{Text: prompt}},
			Role:  RoleUser,
		}},
	}
}

// validate checks the fields Texts relies on.
func (r *Response) validate() error {
	if r.Candidates == nil {
		return errors.New("response has no candidates")
	}
	for i, c := range r.Candidates {
		if c.Content == nil {
			return fmt.Errorf("candidate %d has no content", i)
		}
	}
	return nil
}

// Texts flattens the parts of every candidate, candidate order first.
func (r *Response) Texts() []string {
	texts := []string{}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			texts = append(texts, p.Text)
		}
	}
	return texts
}
