package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// PushChannel delivers messages to a key-addressed push gateway
// (ServerChan-style): POST {endpoint}/{key}.send with title and desp
// form fields.
type PushChannel struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Send(ctx context.Context, msg Message) error {
	if c.Key == "" {
		return fmt.Errorf("push: no key configured")
	}

	target := fmt.Sprintf("%s/%s.send", strings.TrimSuffix(c.Endpoint, "/"), c.Key)

	form := url.Values{}
	form.Set("title", msg.Subject)
	form.Set("desp", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("push: http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push: gateway returned HTTP %d", resp.StatusCode)
	}
	return nil
}
