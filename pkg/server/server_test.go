package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
	"github.com/mailfin/ledgermail/pkg/processor"
)

type fakeBacklog struct {
	inserted []insertedAction
	err      error
}

type insertedAction struct {
	source string
	act    action.Action
}

func (f *fakeBacklog) Insert(source string, act action.Action) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.inserted = append(f.inserted, insertedAction{source, act})
	return int64(len(f.inserted)), nil
}

// stubProcessor claims emails whose subject carries its keyword.
type stubProcessor struct {
	id      string
	keyword string
	act     *action.Action
	err     error
}

func (s *stubProcessor) Identifier() string { return s.id }

func (s *stubProcessor) Matches(email *mail.Email) bool {
	return strings.Contains(email.Subject, s.keyword)
}

func (s *stubProcessor) Process(context.Context, *mail.Email) (*action.Action, error) {
	return s.act, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const innerEmail = "From: auto-confirm@amazon.com\r\n" +
	"Subject: Ordered: your stuff\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Order #\r\n123-4567890-1234567\r\n"

// forwardedEmail wraps the inner message the way the mailbox forwarder
// does: the raw original becomes the plain text body.
func forwardedEmail(from string) string {
	return "From: " + from + "\r\n" +
		"Subject: Fwd: Ordered: your stuff\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		innerEmail
}

func ingestRequest(t *testing.T, body, token string) *http.Request {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(encoded))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newTestServer(backlog Backlog, procs ...processor.Processor) http.Handler {
	s := New(backlog, processor.NewRegistry(procs...), "secret", "me@example.com", discardLogger())
	return s.Router()
}

func TestIngestCreatesAction(t *testing.T) {
	act := &action.Action{
		Match:    action.Match{ExpectedPayee: "Amazon", ExpectedTotal: 1299},
		Mutation: action.Update{Note: "stuff"},
	}
	backlog := &fakeBacklog{}
	router := newTestServer(backlog, &stubProcessor{id: "amazon", keyword: "Ordered", act: act})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("me@example.com"), "secret"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	if len(backlog.inserted) != 1 {
		t.Fatalf("inserted %d actions, want 1", len(backlog.inserted))
	}
	if backlog.inserted[0].source != "amazon" {
		t.Errorf("source = %q, want amazon", backlog.inserted[0].source)
	}
	if backlog.inserted[0].act.Match.ExpectedTotal != 1299 {
		t.Errorf("inserted action = %+v", backlog.inserted[0].act)
	}
	if !strings.Contains(rec.Body.String(), "created") {
		t.Errorf("body = %s, want created outcome", rec.Body.String())
	}
}

func TestIngestRequiresToken(t *testing.T) {
	backlog := &fakeBacklog{}
	router := newTestServer(backlog)

	for _, token := range []string{"", "wrong"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("me@example.com"), token))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
	}
	if len(backlog.inserted) != 0 {
		t.Error("unauthorized requests must not reach the backlog")
	}
}

func TestIngestRejectsGarbage(t *testing.T) {
	router := newTestServer(&fakeBacklog{})

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("!!! not base64 !!!"))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-base64 body: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, "no headers at all", "secret"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unparseable message: status = %d, want 400", rec.Code)
	}
}

func TestIngestDisallowedSender(t *testing.T) {
	backlog := &fakeBacklog{}
	router := newTestServer(backlog, &stubProcessor{id: "amazon", keyword: "Ordered"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("stranger@example.com"), "secret"))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disallowed") {
		t.Errorf("body = %s, want disallowed outcome", rec.Body.String())
	}
	if len(backlog.inserted) != 0 {
		t.Error("disallowed sender must not reach the backlog")
	}
}

func TestIngestUnmatchedEmail(t *testing.T) {
	backlog := &fakeBacklog{}
	router := newTestServer(backlog, &stubProcessor{id: "apple", keyword: "receipt from Apple"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("me@example.com"), "secret"))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unmatched") {
		t.Errorf("body = %s, want unmatched outcome", rec.Body.String())
	}
}

func TestIngestIgnoredEmail(t *testing.T) {
	backlog := &fakeBacklog{}
	router := newTestServer(backlog, &stubProcessor{id: "lyft-bike", keyword: "Ordered", act: nil})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("me@example.com"), "secret"))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ignored") {
		t.Errorf("body = %s, want ignored outcome", rec.Body.String())
	}
	if len(backlog.inserted) != 0 {
		t.Error("ignored email must not reach the backlog")
	}
}

func TestIngestProcessorFailure(t *testing.T) {
	router := newTestServer(&fakeBacklog{},
		&stubProcessor{id: "amazon", keyword: "Ordered", err: errors.New("extraction down")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ingestRequest(t, forwardedEmail("me@example.com"), "secret"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestServer(&fakeBacklog{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
