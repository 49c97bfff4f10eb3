package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
)

// ConfiguredSenders builds the senders whose credentials are present. A
// channel without credentials gets a nil sender and fails at dispatch.
func ConfiguredSenders(cfg *config.Config, ses aws.SESAPI, log *logrus.Entry) (SMSSender, EmailSender) {
	var (
		sms   SMSSender
		email EmailSender
	)
	if s, err := NewTwilioSMS(cfg.Twilio, cfg.DefaultPhoneRegion, log.WithField("channel", ChannelSMS)); err != nil {
		log.WithField("error", err.Error()).Warn("sms sender disabled")
	} else {
		sms = s
	}
	if e, err := NewSESEmail(ses, cfg.SES, log.WithField("channel", ChannelEmail)); err != nil {
		log.WithField("error", err.Error()).Warn("email sender disabled")
	} else {
		email = e
	}
	return sms, email
}
