package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dapur-be/internal/logger"

	"go.uber.org/zap"
)

type smsGateway struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewSMSGateway posts messages as JSON to an HTTP SMS provider.
func NewSMSGateway(url, apiKey string) Notifier {
	if apiKey == "" {
		logger.L().Warn("SMS gateway API key is empty")
	}

	return &smsGateway{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type smsRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

func (g *smsGateway) Send(ctx context.Context, msg Message) error {
	log := logger.For(ctx, "notify", "SMSGateway.Send").With(
		zap.String("phone", msg.Phone),
		zap.String("kind", msg.Kind.String()),
	)

	body, err := json.Marshal(smsRequest{
		To:        msg.Phone,
		Message:   msg.Body,
		Reference: msg.Kind.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.apiKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Warn("sms gateway request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn("sms gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	return nil
}
