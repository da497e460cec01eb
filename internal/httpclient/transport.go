package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RawResponse is what a Transport observed, with no OpenAPI interpretation.
type RawResponse struct {
	Status     int
	StatusText string
	Headers    http.Header
	Body       []byte
}

// Transport sends one request. Any HTTP status is a successful round trip;
// an error means the request never completed.
type Transport interface {
	Do(ctx context.Context, req Request) (RawResponse, error)
}

// TransportError wraps network-level failures (DNS, refused connections,
// TLS, unreadable upload files).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "request failed: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPTransport sends requests with net/http. It sets no timeout of its own.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) (RawResponse, error) {
	var body io.Reader
	contentType := ""
	switch {
	case r.Multipart:
		buf, ct, err := encodeMultipart(r.Form)
		if err != nil {
			return RawResponse{}, err
		}
		body, contentType = buf, ct
	case len(r.Body) > 0:
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return RawResponse{}, err
	}
	for _, h := range r.Headers {
		if strings.TrimSpace(h.Value) != "" {
			req.Header.Set(h.Key, h.Value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return RawResponse{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, fmt.Errorf("read response body: %w", err)
	}
	return RawResponse{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    resp.Header,
		Body:       b,
	}, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func encodeMultipart(parts []FormPart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, p := range parts {
		if !p.IsFile() {
			if err := w.WriteField(p.Name, p.Value); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := writeFilePart(w, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, p FormPart) error {
	f, err := os.Open(p.FilePath)
	if err != nil {
		return fmt.Errorf("open upload for field %s: %w", p.Name, err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(p.Name, filepath.Base(p.FilePath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
