package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/logger"
)

const (
	sendEndpoint   = "https://api.sendgrid.com/v3/mail/send"
	requestTimeout = 10 * time.Second
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is one outbound email.
type Message struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Client sends transactional mail through the Sendgrid v3 API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	from       string
}

// NewClient validates the Sendgrid configuration and returns a client.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errors.New("sendgrid from address is required")
	}

	if logg != nil {
		logg.Info(ctx, "sendgrid client initialized")
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoint:   sendEndpoint,
		apiKey:     apiKey,
		from:       from,
	}, nil
}

// Send delivers one message. A non-2xx response is returned as an error
// with the API's message attached.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return errors.New("mailer client not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}

	content := []sendContent{}
	if msg.PlainText != "" {
		content = append(content, sendContent{Type: "text/plain", Value: msg.PlainText})
	}
	if msg.HTML != "" {
		content = append(content, sendContent{Type: "text/html", Value: msg.HTML})
	}
	if len(content) == 0 {
		return errors.New("message body is required")
	}

	body := sendRequest{
		Personalizations: []personalization{{
			To: []address{{Email: msg.To, Name: msg.ToName}},
		}},
		From:    address{Email: c.from},
		Subject: msg.Subject,
		Content: content,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if len(detail) > 0 {
			return fmt.Errorf("sendgrid send failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
		}
		return fmt.Errorf("sendgrid send failed: %s", resp.Status)
	}
	return nil
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []sendContent     `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
