// Package crazeapi is the client side of the CrazeAI HTTP API. It maps HTTP
// outcomes back into the domain error taxonomy so the retry controller can
// tell timeouts from service and network failures.
package crazeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
)

var (
	_ adapter.ChatService       = (*Client)(nil)
	_ adapter.SpeechSynthesizer = (*Client)(nil)
	_ adapter.Transcriber       = (*Client)(nil)
	_ adapter.CapabilitySource  = (*Client)(nil)
)

type Client struct {
	base   *url.URL
	client *http.Client
}

// New returns a client for baseURL. The session cookie is kept in a jar, so one
// Client is one server session. httpClient may be nil; its Timeout should stay 0
// because deadlines come from the caller's context.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}
	return &Client{base: u, client: httpClient}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	var out model.ChatReply
	if err := c.doJSON(ctx, "chat", http.MethodPost, "/chat", req, &out); err != nil {
		return model.ChatReply{}, err
	}
	if strings.TrimSpace(out.Reply) == "" {
		return model.ChatReply{}, &domain.ServiceError{Service: "chat", Detail: "empty reply"}
	}
	return out, nil
}

func (c *Client) Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error) {
	b, _ := json.Marshal(map[string]any{
		"text":         req.Text,
		"voice":        req.Voice,
		"retryAttempt": req.Attempt,
	})
	resp, err := c.send(ctx, "text-to-speech", http.MethodPost, "/text-to-speech", "application/json", bytes.NewReader(b))
	if err != nil {
		return adapter.Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.Audio{}, wrapTransport(ctx, "text-to-speech", err)
	}
	if len(data) == 0 {
		return adapter.Audio{}, &domain.ServiceError{Service: "text-to-speech", StatusCode: resp.StatusCode, Detail: "empty audio"}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return adapter.Audio{Data: data, ContentType: ct}, nil
}

func (c *Client) Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error) {
	if req.Audio == nil {
		return "", domain.ErrNoAudio
	}
	name := req.Filename
	if name == "" {
		name = "recording.webm"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, req.Audio); err != nil {
		return "", fmt.Errorf("read recording: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.send(ctx, "speech-to-text", http.MethodPost, "/speech-to-text", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.ServiceError{Service: "speech-to-text", StatusCode: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return out.Text, nil
}

func (c *Client) Capabilities(ctx context.Context) (model.Capabilities, error) {
	var caps model.Capabilities
	err := c.doJSON(ctx, "capabilities", http.MethodGet, "/capabilities", nil, &caps)
	return caps, err
}

// Session returns the server-side session ID and the name the server mirrors for it.
func (c *Client) Session(ctx context.Context) (sessionID, userName string, err error) {
	var out struct {
		SessionID string `json:"sessionId"`
		UserName  string `json:"userName"`
	}
	if err := c.doJSON(ctx, "session", http.MethodGet, "/session", nil, &out); err != nil {
		return "", "", err
	}
	return out.SessionID, out.UserName, nil
}

// ForgetName clears the server's copy of the session name.
func (c *Client) ForgetName(ctx context.Context) error {
	resp, err := c.send(ctx, "session", http.MethodDelete, "/session/name", "", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) doJSON(ctx context.Context, service, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.send(ctx, service, method, path, ct, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return wrapTransport(ctx, service, err)
		}
		return &domain.ServiceError{Service: service, StatusCode: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}

// send performs the request and returns the response only for 2xx; every other
// outcome is converted into a domain error and the body is closed.
func (c *Client) send(ctx context.Context, service, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, audio/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransport(ctx, service, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, statusError(service, resp)
}

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func statusError(service string, resp *http.Response) error {
	var e apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &e) != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(raw))
	}
	detail := e.Error
	if e.Details != "" {
		detail += ": " + e.Details
	}

	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &domain.TimeoutError{Op: service, Attempts: 1}
	case http.StatusBadRequest:
		return &domain.ValidationError{Reason: detail}
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, retryAfter(resp))
	case http.StatusNotImplemented:
		return domain.ErrUnsupported
	}
	return &domain.ServiceError{Service: service, StatusCode: resp.StatusCode, Detail: detail}
}

func retryAfter(resp *http.Response) string {
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		return strconv.Itoa(s) + "s"
	}
	return "a while"
}

func wrapTransport(ctx context.Context, service string, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.TimeoutError{Op: service, Attempts: 1}
		}
		return context.Cause(ctx)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TimeoutError{Op: service, Attempts: 1}
	}
	return &domain.NetworkError{Service: service, Err: err}
}
