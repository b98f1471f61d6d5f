package twilio

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-campaign-service/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Dialer places outbound call legs through the Twilio REST API. Twilio
// delivers the conversation back to us through the callback URLs: speech
// results hit the answer/turn webhook, terminal statuses hit the status
// webhook.
type Dialer struct {
	client *twilio.RestClient
	from   string
}

// NewDialer creates a dialer. The from number is the campaign's caller ID.
func NewDialer(accountSID, authToken, from string) *Dialer {
	return &Dialer{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

// StartCall initiates a call leg and returns the provider's opaque call ID.
func (d *Dialer) StartCall(ctx context.Context, to, callbackURL, statusCallbackURL string) (string, error) {
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetUrl(callbackURL)
	params.SetMethod("POST")
	params.SetStatusCallback(statusCallbackURL)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"completed", "no-answer", "busy", "failed"})
	params.SetTimeout(30)

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to create call to %s: %w", to, err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return "", fmt.Errorf("telephony provider returned no call sid for %s", to)
	}

	logger.Base().Info("Call leg created",
		zap.String("call_id", *resp.Sid),
		zap.String("to", to))
	return *resp.Sid, nil
}

// EndCall best-effort hangs up an in-flight call leg.
func (d *Dialer) EndCall(ctx context.Context, callID string) error {
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := d.client.Api.UpdateCall(callID, params); err != nil {
		return fmt.Errorf("failed to end call %s: %w", callID, err)
	}
	logger.Base().Info("Call leg terminated", zap.String("call_id", callID))
	return nil
}
