package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"geminiclient/internal/db"
	"geminiclient/internal/gemini"
	"geminiclient/internal/middleware"
	"geminiclient/internal/store"
	"geminiclient/internal/testutil"
)

type fakeAsker struct {
	answers []string
	err     error
	prompts []string
}

func (f *fakeAsker) Ask(ctx context.Context, prompt string) ([]string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answers, f.err
}

func (f *fakeAsker) Model() string { return "test-model" }

func (f *fakeAsker) Host() string { return "proxy.example.com" }

func newTestAPI(t *testing.T, asker Asker) *GeminiAPI {
	t.Helper()
	database, err := db.InitDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.CloseDB(database) })

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewGeminiAPI(asker, store.NewExchangeStore(database), log)
}

func ask(t *testing.T, api *GeminiAPI, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	r.Header.Set(middleware.HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	api.AskHandler(w, r)
	return w
}

func TestAskHandler(t *testing.T) {
	asker := &fakeAsker{answers: []string{"a", "b", "c"}}
	api := newTestAPI(t, asker)

	w := ask(t, api, `{"prompt":"tell me"}`)
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertEqual(t, asker.prompts, []string{"tell me"})

	resp := testutil.UnmarshalJSON[askResponse](t, w.Body.Bytes())
	testutil.AssertEqual(t, resp.Model, "test-model")
	testutil.AssertEqual(t, resp.Answers, []string{"a", "b", "c"})
	if resp.ID == "" {
		t.Fatal("response has no exchange ID")
	}

	recent, err := api.Exchanges.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(recent), 1)
	testutil.AssertEqual(t, recent[0].ID, resp.ID)
	testutil.AssertEqual(t, recent[0].RequestID, "req-1")
	testutil.AssertEqual(t, recent[0].Prompt, "tell me")
	testutil.AssertEqual(t, recent[0].Answers, []string{"a", "b", "c"})
}

func TestAskHandlerEmptyAnswers(t *testing.T) {
	api := newTestAPI(t, &fakeAsker{answers: []string{}})

	w := ask(t, api, `{"prompt":"quiet"}`)
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	resp := testutil.UnmarshalJSON[askResponse](t, w.Body.Bytes())
	testutil.AssertEqual(t, resp.Answers, []string{})
}

func TestAskHandlerBadRequest(t *testing.T) {
	cases := map[string]string{
		"not json":     `prompt=hi`,
		"empty body":   ``,
		"empty prompt": `{"prompt":"   "}`,
		"no prompt":    `{}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			asker := &fakeAsker{}
			w := ask(t, newTestAPI(t, asker), body)
			testutil.AssertEqual(t, w.Code, http.StatusBadRequest)
			env := testutil.UnmarshalJSON[errorEnvelope](t, w.Body.Bytes())
			testutil.AssertEqual(t, env.Error.Code, "bad_request")
			if len(asker.prompts) != 0 {
				t.Fatalf("client was called for an invalid request: %v", asker.prompts)
			}
		})
	}
}

func TestAskHandlerErrors(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		"network": {
			err:        &gemini.NetworkError{Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_unavailable",
		},
		"upstream status": {
			err:        &gemini.NetworkError{Err: &gemini.StatusError{StatusCode: 429, Message: "quota"}},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_unavailable",
		},
		"serialization": {
			err:        &gemini.SerializationError{Err: errors.New("unexpected end of JSON input")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_malformed",
		},
		"blocked": {
			err:        &gemini.BlockedError{Reason: "SAFETY"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "prompt_blocked",
		},
		"unknown": {
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api := newTestAPI(t, &fakeAsker{err: tc.err})

			w := ask(t, api, `{"prompt":"hi"}`)
			testutil.AssertEqual(t, w.Code, tc.wantStatus)
			env := testutil.UnmarshalJSON[errorEnvelope](t, w.Body.Bytes())
			testutil.AssertEqual(t, env.Error.Code, tc.wantCode)
			testutil.AssertEqual(t, env.Error.Message, tc.err.Error())

			recent, err := api.Exchanges.Recent(context.Background(), 1)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, len(recent), 1)
			testutil.AssertEqual(t, recent[0].Error, tc.err.Error())
			testutil.AssertEqual(t, recent[0].Answers, []string{})
		})
	}
}

func TestAskHandlerWithoutLog(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	api := NewGeminiAPI(&fakeAsker{answers: []string{"x"}}, nil, log)

	w := ask(t, api, `{"prompt":"hi"}`)
	testutil.AssertEqual(t, w.Code, http.StatusOK)

	w = httptest.NewRecorder()
	api.ExchangesHandler(w, httptest.NewRequest(http.MethodGet, "/v1/exchanges", nil))
	testutil.AssertEqual(t, w.Code, http.StatusNotFound)
}

func TestExchangesHandler(t *testing.T) {
	api := newTestAPI(t, &fakeAsker{answers: []string{"x"}})
	for _, p := range []string{"one", "two", "three"} {
		if w := ask(t, api, `{"prompt":"`+p+`"}`); w.Code != http.StatusOK {
			t.Fatalf("ask %q: status %d", p, w.Code)
		}
	}

	cases := map[string]struct {
		query      string
		wantStatus int
		wantLen    int
	}{
		"default limit":  {query: "", wantStatus: http.StatusOK, wantLen: 3},
		"explicit limit": {query: "?limit=2", wantStatus: http.StatusOK, wantLen: 2},
		"capped limit":   {query: "?limit=100000", wantStatus: http.StatusOK, wantLen: 3},
		"zero limit":     {query: "?limit=0", wantStatus: http.StatusBadRequest},
		"bad limit":      {query: "?limit=many", wantStatus: http.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.ExchangesHandler(w, httptest.NewRequest(http.MethodGet, "/v1/exchanges"+tc.query, nil))
			testutil.AssertEqual(t, w.Code, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			resp := testutil.UnmarshalJSON[exchangesResponse](t, w.Body.Bytes())
			testutil.AssertEqual(t, len(resp.Exchanges), tc.wantLen)
		})
	}
}

func TestModelHandler(t *testing.T) {
	api := newTestAPI(t, &fakeAsker{})

	w := httptest.NewRecorder()
	api.ModelHandler(w, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	testutil.AssertEqual(t, w.Code, http.StatusOK)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[modelResponse](t, w.Body.Bytes()), modelResponse{
		Model: "test-model",
		Host:  "proxy.example.com",
	})
}
