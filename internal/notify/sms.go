package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"landlordpay/server/internal/models"
)

// messageCreator is the part of the Twilio REST client the SMS sink uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type SMSConfig struct {
	AccountSID    string
	AuthToken     string
	FromPhone     string
	ComplaintLine string
}

// SMSSink texts the tenant a receipt for each payment.
type SMSSink struct {
	api    messageCreator
	config SMSConfig
}

func NewSMSSink(config SMSConfig) *SMSSink {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &SMSSink{api: client.Api, config: config}
}

func (s *SMSSink) Name() string { return "sms" }

// Send texts the tenant. Notifications without a phone number are skipped.
func (s *SMSSink) Send(_ context.Context, n models.Notification) error {
	if n.Phone == "" {
		return nil
	}

	body := fmt.Sprintf("Dear %s, your payment of KES %s for unit %s has been received. Balance: KES %s.",
		n.TenantName, n.Amount.StringFixed(2), n.UnitLabel, n.NewBalance.StringFixed(2))
	if s.config.ComplaintLine != "" {
		body += fmt.Sprintf(" For complaints, call: %s.", s.config.ComplaintLine)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.Phone)
	params.SetFrom(s.config.FromPhone)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send sms via twilio: %w", err)
	}
	return nil
}
