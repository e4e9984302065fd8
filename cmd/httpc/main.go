// Command httpc sends a single HTTP request, or downloads one or more
// files, with the httpclient request builder.
//
//	httpc -H 'X-Token: abc' -b session=s1 --retry 3 https://api.example.com/items
//	httpc -X POST --json -d '{"name":"x"}' https://api.example.com/items
//	httpc -X POST -F title=report -F doc=@notes.txt https://api.example.com/upload
//	httpc -o logo.* https://example.com/logo
//	httpc -o ./files --parallel 4 https://example.com/a.zip https://example.com/b.zip
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nspteam/httpclient"
	"github.com/nspteam/httpclient/client"
	"github.com/nspteam/httpclient/client/download"
	"github.com/nspteam/httpclient/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "httpc:", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	method      string
	headers     []string
	cookies     []string
	data        string
	form        []string
	json        bool
	contentType string
	output      string
	parallel    int
	checksum    string
	progress    bool
	include     bool
	fail        bool
	configPath  string
}

func newFlagSet(stderr io.Writer) (*pflag.FlagSet, *cliFlags) {
	var f cliFlags

	fs := pflag.NewFlagSet("httpc", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: httpc [flags] URL [URL...]")
		fs.PrintDefaults()
	}

	fs.StringVarP(&f.method, "request", "X", "", "request method (GET when empty or unsupported)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	fs.StringArrayVarP(&f.cookies, "cookie", "b", nil, `request cookie "name=value" (repeatable)`)
	fs.StringVarP(&f.data, "data", "d", "", "request body, @path reads a file")
	fs.StringArrayVarP(&f.form, "form", "F", nil, `form field "name=value", "name=@path" uploads a file (repeatable)`)
	fs.BoolVar(&f.json, "json", false, "encode the body as JSON")
	fs.StringVar(&f.contentType, "content-type", "", "literal Content-Type of the body")
	fs.StringVarP(&f.output, "output", "o", "", `download to this path ("name.*" infers the extension), or directory for several URLs`)
	fs.IntVar(&f.parallel, "parallel", 4, "concurrent downloads for several URLs")
	fs.StringVar(&f.checksum, "sha256", "", "expected hex SHA-256 of a single download")
	fs.BoolVar(&f.progress, "progress", false, "log download progress")
	fs.BoolVarP(&f.include, "include", "i", false, "print status line and headers")
	fs.BoolVar(&f.fail, "fail", false, "exit non-zero on a non-2xx status")
	fs.StringVar(&f.configPath, "config", "", "YAML file with request defaults")

	// Configuration flags, see config.Load.
	fs.Int("retry", 0, "retries after a failed attempt")
	fs.Duration("timeout", 0, "total timeout per attempt")
	fs.Duration("connect-timeout", 0, "connect timeout")
	fs.StringP("user-agent", "A", "", "User-Agent header")
	fs.Bool("no-follow", false, "do not follow redirects")
	fs.Bool("download-config", false, "apply headers, cookies, retry and timeouts to downloads")
	fs.Bool("trace", false, "print OpenTelemetry spans to stderr")
	fs.Int("rps", 0, "per-host requests per second, 0 disables throttling")
	fs.Int("burst", 1, "per-host burst when throttling")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")

	return fs, &f
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, f := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing URL")
	}

	cfg, err := config.Load(f.configPath, fs)
	if err != nil {
		return err
	}

	logger := cfg.Logger(stderr)

	opts, err := cfg.ClientOptions(logger)
	if err != nil {
		return err
	}

	b := httpclient.Create(opts...).
		WithHeaders(cfg.Headers).
		WithCookies(cfg.Cookies).
		WithRetry(cfg.Retry).
		WithTimeout(cfg.Timeout, cfg.ConnectTimeout).
		WithDownloadConfig(cfg.DownloadConfig)

	if cfg.Trace {
		tp, err := newTracerProvider(stderr)
		if err != nil {
			return err
		}
		defer tp.Shutdown(context.WithoutCancel(ctx))
		b.WithTracerProvider(tp)
	}

	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("malformed header %q, want \"Name: value\"", h)
		}
		b.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, c := range f.cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok {
			return fmt.Errorf("malformed cookie %q, want \"name=value\"", c)
		}
		b.WithCookie(strings.TrimSpace(name), value)
	}
	if err := b.Err(); err != nil {
		return err
	}

	body, err := requestBody(f)
	if err != nil {
		return err
	}

	if f.output != "" {
		return runDownload(ctx, b, f, body, fs.Args(), stdout)
	}
	if fs.NArg() > 1 {
		return errors.New("several URLs need --output naming a directory")
	}

	contentType := f.contentType
	if f.json {
		contentType = client.ContentTypeJSON
	}

	resp, err := b.Do(ctx, f.method, fs.Arg(0), body, contentType)
	if err != nil {
		return err
	}

	if f.include {
		printHeader(stdout, resp)
	}
	if _, err := stdout.Write(resp.Body); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	if f.fail && !resp.Success() {
		return resp.Expect(http.StatusOK)
	}

	return nil
}

// requestBody assembles the body from --data or --form.
func requestBody(f *cliFlags) (any, error) {
	if f.data != "" && len(f.form) > 0 {
		return nil, errors.New("--data and --form are mutually exclusive")
	}

	if strings.HasPrefix(f.data, "@") {
		b, err := os.ReadFile(f.data[1:])
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return b, nil
	}
	if f.data != "" {
		return f.data, nil
	}

	if len(f.form) == 0 {
		return nil, nil
	}

	fields := make(map[string]any, len(f.form))
	for _, field := range f.form {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("malformed form field %q, want \"name=value\"", field)
		}
		if p, isFile := strings.CutPrefix(value, "@"); isFile {
			fields[name] = client.UploadFile(filepath.Base(p), "", p)
			continue
		}
		fields[name] = value
	}

	return fields, nil
}

func runDownload(ctx context.Context, b *httpclient.Builder, f *cliFlags, body any, urls []string, stdout io.Writer) error {
	var dlOpts []download.Option
	if f.progress {
		dlOpts = append(dlOpts, download.WithProgress())
	}

	if len(urls) == 1 {
		if f.checksum != "" {
			dlOpts = append(dlOpts, download.WithChecksum(sha256.New(), f.checksum))
		}

		resp, err := b.DownloadFile(ctx, f.output, urls[0], body, f.method, dlOpts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, resp.Path)
		return nil
	}

	if f.checksum != "" {
		return errors.New("--sha256 applies to a single download")
	}

	targets := make([]httpclient.DownloadTarget, len(urls))
	for i, u := range urls {
		targets[i] = httpclient.DownloadTarget{
			DestPath: filepath.Join(f.output, fileName(u, i)),
			URL:      u,
			Body:     body,
			Method:   f.method,
			Options:  dlOpts,
		}
	}

	resps, err := b.DownloadFiles(ctx, f.parallel, targets...)
	for _, resp := range resps {
		if resp != nil {
			fmt.Fprintln(stdout, resp.Path)
		}
	}

	return err
}

// fileName derives a local name from the last path segment of rawURL,
// falling back to a numbered name with an inferred extension.
func fileName(rawURL string, i int) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return fmt.Sprintf("download-%d%s", i+1, download.WildcardExt)
}

func printHeader(w io.Writer, resp *client.Response) {
	fmt.Fprintln(w, resp.Status)

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range resp.Header[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}

func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}
