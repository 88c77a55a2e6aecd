package alert

import (
	"context"
	"fmt"

	"github.com/imroc/req/v3"

	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

const mnotifyEndpoint = "https://api.mnotify.com/api/sms/quick"

type mnotifyClient struct {
	client *req.Client
	apiKey string
	sender string
}

func newMnotifyClient() *mnotifyClient {
	smsConfig := config.GetConfig().Mnotify
	return &mnotifyClient{
		client: req.C(),
		apiKey: smsConfig.APIKey,
		sender: smsConfig.Sender,
	}
}

type mnotifyResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
}

func (m *mnotifyClient) SendEmail(_ context.Context, _, _, _ string) error {
	return fmt.Errorf("mnotify is SMS only")
}

func (m *mnotifyClient) SendSMS(ctx context.Context, toPhone, body string) error {
	if m.apiKey == "" {
		// Unconfigured gateway: keep the message visible in logs so
		// local setups can still see what would have gone out.
		logutils.Log.Infof("SMS to %s (mnotify key not configured): %s", toPhone, body)
		return nil
	}

	var result mnotifyResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("key", m.apiKey).
		SetBodyJsonMarshal(map[string]any{
			"recipient": []string{toPhone},
			"sender":    m.sender,
			"message":   body,
		}).
		SetSuccessResult(&result).
		Post(mnotifyEndpoint)
	if err != nil {
		return err
	}
	if resp.IsErrorState() {
		return fmt.Errorf("mnotify returned %s", resp.Status)
	}
	if result.Status != "success" {
		return fmt.Errorf("mnotify rejected message: status=%s code=%s", result.Status, result.Code)
	}
	return nil
}
