package notify

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/aws"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to string, email *Email) (*Receipt, error)
}

// SESEmail sends email through Amazon SES v2.
type SESEmail struct {
	client aws.SESAPI
	from   string
	log    *logrus.Entry
}

func NewSESEmail(client aws.SESAPI, cfg config.SES, log *logrus.Entry) (*SESEmail, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SESEmail{client: client, from: cfg.FromEmail, log: log}, nil
}

func (s *SESEmail) SendEmail(ctx context.Context, to string, email *Email) (*Receipt, error) {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: sdkaws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: utf8(email.Subject),
				Body: &sestypes.Body{
					Html: utf8(email.HTML),
					Text: utf8(email.Text),
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "ses send email")
	}

	r := &Receipt{Status: "sent"}
	if out.MessageId != nil {
		r.MessageID = *out.MessageId
	}
	s.log.WithFields(logrus.Fields{"messageId": r.MessageID, "to": to}).Info("email sent")
	return r, nil
}

func utf8(s string) *sestypes.Content {
	return &sestypes.Content{Data: sdkaws.String(s), Charset: sdkaws.String("UTF-8")}
}
