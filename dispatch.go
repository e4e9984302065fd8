package httpclient

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/textproto"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nspteam/httpclient/client"
	"github.com/nspteam/httpclient/client/download"
)

// Do dispatches a request with the accumulated configuration. A non-empty
// body replaces the one set by [Builder.WithContent]. Method is
// case-insensitive and anything other than GET, HEAD, POST, PUT, PATCH or
// DELETE is sent as GET. GET and HEAD put the body in the query string
// and ignore contentType.
//
// The response is returned as the transport produced it: a non-2xx
// status is not an error.
func (b *Builder) Do(ctx context.Context, method, url string, body any, contentType string) (*client.Response, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := check(requestArgs{URL: url}); err != nil {
		return nil, err
	}

	method = normalizeMethod(method)
	if method == http.MethodGet || method == http.MethodHead {
		contentType = client.ContentTypeNone
	}

	call := b.call(method, url, body, contentType)

	ctx, span := b.startSpan(ctx, "httpclient."+method, method, url)
	defer span.End()

	call.Header = injectTrace(ctx, call.Header)

	resp, err := b.transport.Send(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return resp, nil
}

// Get dispatches a GET request, body going to the query string.
func (b *Builder) Get(ctx context.Context, url string, body any) (*client.Response, error) {
	return b.Do(ctx, http.MethodGet, url, body, client.ContentTypeNone)
}

// Head dispatches a HEAD request, body going to the query string.
func (b *Builder) Head(ctx context.Context, url string, body any) (*client.Response, error) {
	return b.Do(ctx, http.MethodHead, url, body, client.ContentTypeNone)
}

// Post dispatches a POST request. contentType is [client.ContentTypeNone],
// [client.ContentTypeJSON] or a literal Content-Type value.
func (b *Builder) Post(ctx context.Context, url string, body any, contentType string) (*client.Response, error) {
	return b.Do(ctx, http.MethodPost, url, body, contentType)
}

// Put dispatches a PUT request, see [Builder.Post].
func (b *Builder) Put(ctx context.Context, url string, body any, contentType string) (*client.Response, error) {
	return b.Do(ctx, http.MethodPut, url, body, contentType)
}

// Patch dispatches a PATCH request, see [Builder.Post].
func (b *Builder) Patch(ctx context.Context, url string, body any, contentType string) (*client.Response, error) {
	return b.Do(ctx, http.MethodPatch, url, body, contentType)
}

// Delete dispatches a DELETE request, see [Builder.Post].
func (b *Builder) Delete(ctx context.Context, url string, body any, contentType string) (*client.Response, error) {
	return b.Do(ctx, http.MethodDelete, url, body, contentType)
}

// DownloadFile saves the response body of a request to destPath. An empty
// method means GET. A destPath ending in ".*" takes its extension from the
// response; the returned [client.Response] reports the final path.
//
// Only method, url and body are used unless [Builder.WithDownloadConfig]
// is enabled.
func (b *Builder) DownloadFile(ctx context.Context, destPath, url string, body any, method string, opts ...download.Option) (*client.Response, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := check(downloadArgs{DestPath: destPath, URL: url}); err != nil {
		return nil, err
	}

	method = normalizeMethod(method)

	call := client.Call{Method: method, URL: url, Body: body}
	if b.downloadConfig {
		call = b.call(method, url, body, client.ContentTypeNone)
	}

	ctx, span := b.startSpan(ctx, "httpclient.download", method, url)
	defer span.End()
	span.SetAttributes(attribute.String("file.path", destPath))

	call.Header = injectTrace(ctx, call.Header)

	resp, err := b.transport.Download(ctx, destPath, call, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return resp, nil
}

// DownloadTarget is one file fetched by [Builder.DownloadFiles].
type DownloadTarget struct {
	DestPath string
	URL      string
	Body     any
	Method   string
	Options  []download.Option
}

// DownloadFiles runs [Builder.DownloadFile] for every target with at most
// maxConcurrent downloads in flight, unlimited when maxConcurrent <= 0.
// Responses are returned in target order, nil where a download failed;
// the failures are joined in the returned error, each prefixed with its
// destination.
func (b *Builder) DownloadFiles(ctx context.Context, maxConcurrent int, targets ...DownloadTarget) ([]*client.Response, error) {
	if b.err != nil {
		return nil, b.err
	}

	snapshot := b.Clone()
	responses := make([]*client.Response, len(targets))

	q := download.NewQueue(maxConcurrent)
	for i, target := range targets {
		q.Start(ctx, target.DestPath, func(ctx context.Context) error {
			resp, err := snapshot.DownloadFile(ctx, target.DestPath, target.URL, target.Body, target.Method, target.Options...)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}

	if err := q.Wait(); err != nil {
		return responses, fmt.Errorf("downloading files: %w", err)
	}

	return responses, nil
}

// call snapshots the configuration into a transport call. Empty settings
// are left unset so the transport's defaults apply.
func (b *Builder) call(method, url string, body any, contentType string) client.Call {
	call := client.Call{
		Method:      method,
		URL:         url,
		ContentType: contentType,
	}

	switch {
	case !client.IsEmptyBody(body):
		call.Body = body
	case !client.IsEmptyBody(b.content):
		call.Body = b.content
	}

	if len(b.headers) > 0 {
		call.Header = maps.Clone(b.headers)
	}
	if len(b.cookies) > 0 {
		call.Cookies = maps.Clone(b.cookies)
	}
	if b.timeout > 0 {
		call.Timeout = b.timeout
	}
	if b.connectTimeout > 0 {
		call.ConnectTimeout = b.connectTimeout
	}
	if b.retry > 0 {
		call.Retry = b.retry
	}

	return call
}

func (b *Builder) startSpan(ctx context.Context, name, method, url string) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		),
	)
}

// normalizeMethod upper-cases method and maps anything unsupported to GET.
func normalizeMethod(method string) string {
	switch m := strings.ToUpper(method); m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return m
	default:
		return http.MethodGet
	}
}

// injectTrace adds the propagation headers of the global propagator to
// header. Headers already present are kept.
func injectTrace(ctx context.Context, header map[string]string) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return header
	}

	out := make(map[string]string, len(header)+len(carrier))
	maps.Copy(out, header)
	for k, v := range carrier {
		k = textproto.CanonicalMIMEHeaderKey(k)
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	return out
}
