package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"marqlet-monitor/domain"
)

const defaultSendTimeout = 15 * time.Second

// DefaultAPIBaseURL is the Cloud API base used when a credential omits one.
const DefaultAPIBaseURL = "https://graph.facebook.com/v18.0"

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a WhatsApp Cloud API client.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: defaultSendTimeout}}
}

// SendText posts one text message through the channel described by cred. The
// recipient is reduced to digits before sending. A non-2xx response is an
// error; callers inside a dispatch batch log it and move on.
func (c *Client) SendText(ctx context.Context, cred domain.ChannelCredential, to, body string) error {
	if !cred.Configured() {
		return fmt.Errorf("whatsapp credential is not configured")
	}

	base := cred.APIBaseURL
	if base == "" {
		base = DefaultAPIBaseURL
	}
	url := strings.TrimRight(base, "/") + "/" + cred.PhoneID + "/messages"

	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               digitsOnly(to),
		Type:             "text",
	}
	payload.Text.Body = body

	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send failed with status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
