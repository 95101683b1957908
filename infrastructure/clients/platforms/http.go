package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

// client wraps an http.Client with the platform's error classification.
type client struct {
	platform model.Platform
	http     *http.Client
}

func newClient(platform model.Platform, hc *http.Client) client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client{platform: platform, http: hc}
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func (c client) postJSON(ctx context.Context, hc *http.Client, endpoint string, header http.Header, body, out interface{}) (http.Header, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s request: encode body: %w", c.platform, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.platform, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, hc, req, out)
}

// postForm encodes params (a struct with url tags) as a form body.
func (c client) postForm(ctx context.Context, endpoint string, params, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return fmt.Errorf("%s request: encode form: %w", c.platform, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("%s request: %w", c.platform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = c.do(ctx, c.http, req, out)
	return err
}

func (c client) get(ctx context.Context, hc *http.Client, endpoint string, params, out interface{}) error {
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("%s request: encode query: %w", c.platform, err)
		}
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.platform, err)
	}
	_, err = c.do(ctx, hc, req, out)
	return err
}

func (c client) do(ctx context.Context, hc *http.Client, req *http.Request, out interface{}) (http.Header, error) {
	if hc == nil {
		hc = c.http
	}
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", c.platform, model.ErrTimeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, &model.ProviderError{Platform: c.platform, Kind: model.ProviderTransient, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &model.ProviderError{Platform: c.platform, StatusCode: resp.StatusCode, Kind: model.ProviderTransient, Message: err.Error()}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		logger.GetLogger().WithFields(map[string]interface{}{
			"platform": c.platform,
			"status":   resp.StatusCode,
			"body":     truncate(string(body), maxErrorBody),
		}).Warn("Platform API returned an error")
		return nil, model.NewProviderError(c.platform, resp.StatusCode, errorMessage(body, resp.Status))
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, &model.ProviderError{Platform: c.platform, StatusCode: resp.StatusCode, Kind: model.ProviderPermanent, Message: "unexpected response body"}
		}
	}
	return resp.Header, nil
}

// errorMessage pulls a short message out of the common error envelopes. Falls back to the status text.
func errorMessage(body []byte, status string) string {
	var env struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
		Message          string          `json:"message"`
		Detail           string          `json:"detail"`
		Title            string          `json:"title"`
	}
	if json.Unmarshal(body, &env) != nil {
		return status
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &nested) == nil && nested.Message != "" {
			return truncate(nested.Message, 200)
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			if env.ErrorDescription != "" {
				return truncate(s+": "+env.ErrorDescription, 200)
			}
			return truncate(s, 200)
		}
	}
	for _, m := range []string{env.Message, env.Detail, env.Title} {
		if m != "" {
			return truncate(m, 200)
		}
	}
	return status
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func joinURL(base string, elem ...string) string {
	u, err := url.JoinPath(base, elem...)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.Join(elem, "/")
	}
	return u
}

// composeText appends the link when the platform has no separate link field.
func composeText(content model.PublishContent) string {
	text := strings.TrimSpace(content.Text)
	if content.LinkURL != "" && !strings.Contains(text, content.LinkURL) {
		if text != "" {
			text += "\n\n"
		}
		text += content.LinkURL
	}
	return text
}
