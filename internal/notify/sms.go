package notify

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ttacon/libphonenumber"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/imrishuroy/go-paymentlinks/internal/config"
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (*Receipt, error)
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSMS sends SMS through the Twilio Messages API.
type TwilioSMS struct {
	api    messageCreator
	from   string
	region string
	log    *logrus.Entry
}

// NewTwilioSMS returns a configuration error when credentials are missing.
// Numbers without a country code are parsed in defaultRegion.
func NewTwilioSMS(cfg config.Twilio, defaultRegion string, log *logrus.Entry) (*TwilioSMS, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSMS{api: client.Api, from: cfg.PhoneNumber, region: defaultRegion, log: log}, nil
}

func (t *TwilioSMS) SendSMS(_ context.Context, to, body string) (*Receipt, error) {
	e164, err := NormalizePhone(to, t.region)
	if err != nil {
		return nil, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(e164)
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return nil, errors.Wrap(err, "twilio create message")
	}

	r := &Receipt{}
	if msg.Sid != nil {
		r.MessageID = *msg.Sid
	}
	if msg.Status != nil {
		r.Status = *msg.Status
	}
	t.log.WithFields(logrus.Fields{"messageSid": r.MessageID, "to": e164, "status": r.Status}).Info("SMS sent")
	return r, nil
}

// NormalizePhone returns phone in E.164 form.
func NormalizePhone(phone, defaultRegion string) (string, error) {
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	num, err := libphonenumber.Parse(strings.TrimSpace(phone), defaultRegion)
	if err != nil {
		return "", errors.Wrapf(err, "parse phone number %q", phone)
	}
	if !libphonenumber.IsPossibleNumber(num) {
		return "", errors.Errorf("invalid phone number %q", phone)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
