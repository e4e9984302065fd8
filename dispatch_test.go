package httpclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nspteam/httpclient"
	"github.com/nspteam/httpclient/client"
)

func TestDo_ExplicitBodyOverridesContent(t *testing.T) {
	testCases := []struct {
		name    string
		content any
		body    any
		expBody any
	}{
		{name: "explicit wins", content: "a=1", body: "b=2", expBody: "b=2"},
		{name: "content when body empty", content: "a=1", body: "", expBody: "a=1"},
		{name: "content when body nil", content: map[string]string{"a": "1"}, body: nil, expBody: map[string]string{"a": "1"}},
		{name: "empty map body falls back", content: "a=1", body: map[string]string{}, expBody: "a=1"},
		{name: "neither", content: nil, body: nil, expBody: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ft := &fakeTransport{}
			b := httpclient.New(ft).WithContent(tc.content)

			if _, err := b.Post(t.Context(), testURL, tc.body, client.ContentTypeNone); err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if diff := cmp.Diff(tc.expBody, ft.last(t).Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDo_Methods(t *testing.T) {
	testCases := []struct {
		method         string
		contentType    string
		expMethod      string
		expContentType string
	}{
		{method: "get", contentType: client.ContentTypeJSON, expMethod: http.MethodGet},
		{method: "HEAD", contentType: "text/plain", expMethod: http.MethodHead},
		{method: "post", contentType: client.ContentTypeJSON, expMethod: http.MethodPost, expContentType: client.ContentTypeJSON},
		{method: "Put", contentType: "text/plain", expMethod: http.MethodPut, expContentType: "text/plain"},
		{method: "PATCH", expMethod: http.MethodPatch},
		{method: "delete", contentType: client.ContentTypeJSON, expMethod: http.MethodDelete, expContentType: client.ContentTypeJSON},
		{method: "TRACE", contentType: client.ContentTypeJSON, expMethod: http.MethodGet},
		{method: "", expMethod: http.MethodGet},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			ft := &fakeTransport{}
			b := httpclient.New(ft)

			if _, err := b.Do(t.Context(), tc.method, testURL, "x=1", tc.contentType); err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			call := ft.last(t)
			if call.Method != tc.expMethod {
				t.Errorf("expected method %s, got %s", tc.expMethod, call.Method)
			}
			if call.ContentType != tc.expContentType {
				t.Errorf("expected content type %q, got %q", tc.expContentType, call.ContentType)
			}
		})
	}
}

func TestDo_Wrappers(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft)
	ctx := t.Context()

	b.Get(ctx, testURL, nil)
	b.Head(ctx, testURL, nil)
	b.Post(ctx, testURL, nil, client.ContentTypeJSON)
	b.Put(ctx, testURL, nil, client.ContentTypeJSON)
	b.Patch(ctx, testURL, nil, client.ContentTypeJSON)
	b.Delete(ctx, testURL, nil, client.ContentTypeJSON)

	var got []string
	for _, c := range ft.calls {
		got = append(got, c.Method)
	}

	exp := []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_InvalidURL(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft)

	for _, u := range []string{"", "not a url"} {
		_, err := b.Get(t.Context(), u, nil)
		if !errors.Is(err, httpclient.ErrInvalidArgument) {
			t.Errorf("url %q: expected ErrInvalidArgument, got: %v", u, err)
		}
	}

	if b.Err() != nil {
		t.Errorf("a bad url must not poison the builder, got: %v", b.Err())
	}
	if n := ft.count(); n != 0 {
		t.Errorf("expected no transport calls, got %d", n)
	}
}

func TestDo_TransportErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("connection refused")
	ft := &fakeTransport{err: sentinel}

	_, err := httpclient.New(ft).Get(t.Context(), testURL, nil)
	if !errors.Is(err, sentinel) {
		t.Errorf("expected transport error, got: %v", err)
	}
}

func TestDo_DispatchesAreIsolated(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft).WithHeader("X-A", "1").WithRetry(2)

	if _, err := b.Get(t.Context(), testURL, nil); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	first := ft.last(t)

	// Whatever the transport does with the call must not reach the builder.
	first.Header["X-Injected"] = "yes"

	b.WithHeader("X-B", "2").WithRetry(0)
	if _, err := b.Get(t.Context(), testURL, nil); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	second := ft.last(t)

	if diff := cmp.Diff(map[string]string{"X-A": "1", "X-B": "2"}, second.Header); diff != "" {
		t.Errorf("second headers mismatch (-want +got):\n%s", diff)
	}
	if first.Retry != 2 || second.Retry != 0 {
		t.Errorf("expected retry 2 then 0, got %d then %d", first.Retry, second.Retry)
	}
}

func TestScenario_HeaderGet(t *testing.T) {
	ft := &fakeTransport{}

	_, err := httpclient.New(ft).
		WithHeader("X-Token", "abc").
		Get(t.Context(), "http://h/x", nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	exp := client.Call{
		Method:         http.MethodGet,
		URL:            "http://h/x",
		Header:         map[string]string{"X-Token": "abc"},
		Timeout:        5 * time.Second,
		ConnectTimeout: time.Second,
	}
	if diff := cmp.Diff(exp, ft.last(t)); diff != "" {
		t.Errorf("call mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_CookiesRetryPostJSON(t *testing.T) {
	ft := &fakeTransport{}

	_, err := httpclient.New(ft).
		WithCookies(map[string]string{"a": "1"}).
		WithRetry(3).
		Post(t.Context(), "http://h/y", map[string]any{"name": "x"}, client.ContentTypeJSON)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	exp := client.Call{
		Method:         http.MethodPost,
		URL:            "http://h/y",
		Cookies:        map[string]string{"a": "1"},
		Body:           map[string]any{"name": "x"},
		ContentType:    client.ContentTypeJSON,
		Timeout:        5 * time.Second,
		ConnectTimeout: time.Second,
		Retry:          3,
	}
	if diff := cmp.Diff(exp, ft.last(t)); diff != "" {
		t.Errorf("call mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadFile_BypassesConfigByDefault(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft).
		WithHeader("X-Token", "abc").
		WithCookie("a", "1").
		WithRetry(3).
		WithContent("ignored=1")

	resp, err := b.DownloadFile(t.Context(), "/tmp/out.*", testURL, "q=1", "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	exp := client.Call{Method: http.MethodGet, URL: testURL, Body: "q=1"}
	if diff := cmp.Diff(exp, ft.last(t)); diff != "" {
		t.Errorf("call mismatch (-want +got):\n%s", diff)
	}
	if resp.Path != "/tmp/out.*" || ft.dests[0] != "/tmp/out.*" {
		t.Errorf("unexpected destination: %q", resp.Path)
	}
}

func TestDownloadFile_WithDownloadConfig(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft).
		WithHeader("X-Token", "abc").
		WithRetry(3).
		WithTimeout(time.Minute).
		WithContent("page=2").
		WithDownloadConfig(true)

	if _, err := b.DownloadFile(t.Context(), "/tmp/out.bin", testURL, nil, "post"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	exp := client.Call{
		Method:         http.MethodPost,
		URL:            testURL,
		Header:         map[string]string{"X-Token": "abc"},
		Body:           "page=2",
		Timeout:        time.Minute,
		ConnectTimeout: time.Second,
		Retry:          3,
	}
	if diff := cmp.Diff(exp, ft.last(t)); diff != "" {
		t.Errorf("call mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadFile_InvalidArguments(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft)

	if _, err := b.DownloadFile(t.Context(), "", testURL, nil, ""); !errors.Is(err, httpclient.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty destPath, got: %v", err)
	}
	if _, err := b.DownloadFile(t.Context(), "/tmp/x", "::", nil, ""); !errors.Is(err, httpclient.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for bad url, got: %v", err)
	}
	if n := ft.count(); n != 0 {
		t.Errorf("expected no transport calls, got %d", n)
	}
}

func TestDownloadFiles(t *testing.T) {
	ft := &fakeTransport{}
	b := httpclient.New(ft)

	targets := []httpclient.DownloadTarget{
		{DestPath: "/tmp/a.bin", URL: testURL + "/a"},
		{DestPath: "/tmp/b.bin", URL: testURL + "/b", Method: "post"},
		{DestPath: "", URL: testURL + "/c"},
	}

	resps, err := b.DownloadFiles(t.Context(), 2, targets...)
	if !errors.Is(err, httpclient.ErrInvalidArgument) {
		t.Fatalf("expected the bad target's error, got: %v", err)
	}
	if len(resps) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(resps))
	}
	if resps[0].Path != "/tmp/a.bin" || resps[1].Path != "/tmp/b.bin" || resps[2] != nil {
		t.Errorf("responses out of order: %+v", resps)
	}
	if n := ft.count(); n != 2 {
		t.Errorf("expected 2 transport calls, got %d", n)
	}
}

func TestDo_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ft := &fakeTransport{}
	b := httpclient.New(ft).WithTracerProvider(tp).WithHeader("X-Token", "abc")

	if _, err := b.Post(t.Context(), testURL, "a=1", client.ContentTypeNone); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "httpclient.POST" {
		t.Errorf("expected span httpclient.POST, got %s", span.Name())
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["http.request.method"].AsString(); got != http.MethodPost {
		t.Errorf("expected method attribute POST, got %q", got)
	}
	if got := attrs["http.response.status_code"].AsInt64(); got != http.StatusOK {
		t.Errorf("expected status attribute 200, got %d", got)
	}

	header := ft.last(t).Header
	traceparent := header["Traceparent"]
	if !strings.Contains(traceparent, span.SpanContext().TraceID().String()) {
		t.Errorf("expected traceparent carrying trace id, got %q", traceparent)
	}
	if header["X-Token"] != "abc" {
		t.Errorf("configured headers must survive injection, got %v", header)
	}
}

func TestBuilder_EndToEnd(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		c, err := r.Cookie("session")
		if err != nil || c.Value != "s1" {
			t.Errorf("expected session cookie, got %v", err)
		}
		if tok := r.Header.Get("X-Token"); tok != "abc" {
			t.Errorf("expected X-Token abc, got %q", tok)
		}
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	}))
	defer ts.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := httpclient.Create(client.WithLogger(logger), client.WithRetryWait(time.Millisecond, 5*time.Millisecond)).
		WithHeader("x-token", "abc").
		WithCookie("session", "s1").
		WithRetry(2).
		WithTimeout(2 * time.Second)

	resp, err := b.Post(t.Context(), ts.URL, map[string]any{"name": "x"}, client.ContentTypeJSON)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if resp.StatusCode != http.StatusOK || resp.Attempts != 2 {
		t.Errorf("expected 200 after 2 attempts, got %d after %d", resp.StatusCode, resp.Attempts)
	}
	if resp.String() != `{"name":"x"}` {
		t.Errorf("unexpected echoed body %q", resp.String())
	}
}

func TestBuilder_EndToEndReaderContent(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
	}))
	defer ts.Close()

	b := httpclient.Create(client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).
		WithContent(strings.NewReader("payload"))

	for i := range 2 {
		if _, err := b.Post(t.Context(), ts.URL, nil, client.ContentTypeNone); err != nil {
			t.Fatalf("dispatch %d: expected no error, got: %v", i+1, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"payload", "payload"}, bodies); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_EndToEndDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "" {
			t.Error("builder headers must not reach a plain download")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	dir := t.TempDir()
	b := httpclient.Create(client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).
		WithHeader("X-Token", "abc")

	resp, err := b.DownloadFile(t.Context(), filepath.Join(dir, "data.*"), ts.URL, nil, "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if exp := filepath.Join(dir, "data.json"); resp.Path != exp {
		t.Errorf("expected path %q, got %q", exp, resp.Path)
	}
	got, err := os.ReadFile(resp.Path)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("unexpected file content %q", got)
	}
}
