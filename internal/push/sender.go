package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"notify-service/internal/credential"
)

// SendResponse is the raw provider answer to one send call.
type SendResponse struct {
	StatusCode int
	Body       []byte
}

// Sender issues one provider send call.
type Sender interface {
	Send(ctx context.Context, tok credential.BearerToken, msg Message) (*SendResponse, error)
}

// FCMSender talks to the HTTP v1 send API.
type FCMSender struct {
	url    string
	client *http.Client
}

// NewFCMSender targets base + /v1/projects/<project>/messages:send. A nil
// client gets a traced client with a 15s timeout.
func NewFCMSender(base, projectID string, client *http.Client) *FCMSender {
	if client == nil {
		client = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &FCMSender{
		url:    fmt.Sprintf("%s/v1/projects/%s/messages:send", strings.TrimRight(base, "/"), projectID),
		client: client,
	}
}

func (s *FCMSender) Send(ctx context.Context, tok credential.BearerToken, msg Message) (*SendResponse, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tok.Header())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	return &SendResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
