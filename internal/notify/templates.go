package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// SMSBody renders the SMS text for m.
func SMSBody(m Message) string {
	amt := links.FormatMoney(m.Amount, m.Currency)
	switch m.Kind {
	case KindConfirmation:
		return "Payment confirmed! Invoice " + m.InvoiceNumber + " for " + amt +
			" has been processed successfully. Transaction ID: " + m.TransactionID
	case KindFailure:
		reason := m.Reason
		if reason == "" {
			reason = "Payment processing failed"
		}
		return "Payment failed for invoice " + m.InvoiceNumber + " (" + amt + "). Reason: " + reason +
			". Please try again or contact us for assistance."
	default:
		return "Hi " + m.CustomerName + ", your payment link for invoice " + m.InvoiceNumber +
			" (" + amt + ") is ready. Click here to pay: " + m.CheckoutURL
	}
}

// Email is a rendered email.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

type emailView struct {
	Message
	Total string
	Items []itemView
}

type itemView struct {
	Description string
	Quantity    int
	Amount      string
}

func view(m Message) emailView {
	v := emailView{Message: m, Total: links.FormatMoney(m.Amount, m.Currency)}
	for _, it := range m.LineItems {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		price := it.UnitPrice
		if price == 0 {
			price = it.TotalPrice
		}
		v.Items = append(v.Items, itemView{
			Description: it.Description,
			Quantity:    qty,
			Amount:      "$" + decimal.NewFromFloat(price).StringFixed(2),
		})
	}
	return v
}

var (
	linkHTML = htmltemplate.Must(htmltemplate.New("link").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
  <table width="600" cellpadding="0" cellspacing="0" align="center" style="background-color: #ffffff; border-radius: 8px;">
    <tr><td style="background-color: #667eea; padding: 30px; text-align: center;">
      <h1 style="color: #ffffff; margin: 0; font-size: 28px;">Payment Request</h1>
    </td></tr>
    <tr><td style="padding: 40px 30px;">
      <p style="color: #333; font-size: 16px;">Hello {{.CustomerName}},</p>
      <p style="color: #666; font-size: 14px;">You have a payment request for invoice <strong>{{.InvoiceNumber}}</strong>.</p>
      {{if .Description}}<p style="color: #666; font-size: 14px;">{{.Description}}</p>{{end}}
      {{if .Items}}<h3 style="color: #333;">Items:</h3>
      <table style="width: 100%; border-collapse: collapse;">
        <tr><th style="text-align: left;">Description</th><th>Qty</th><th style="text-align: right;">Amount</th></tr>
        {{range .Items}}<tr><td>{{.Description}}</td><td style="text-align: center;">{{.Quantity}}</td><td style="text-align: right;">{{.Amount}}</td></tr>
        {{end}}
      </table>{{end}}
      <div style="background-color: #f8f9fa; border-left: 4px solid #667eea; padding: 20px; margin: 20px 0;">
        <p style="color: #333; font-size: 18px; margin: 0;"><strong>Total Amount:</strong></p>
        <p style="color: #667eea; font-size: 32px; font-weight: bold; margin: 10px 0 0 0;">{{.Total}}</p>
      </div>
      <p style="text-align: center;"><a href="{{.CheckoutURL}}" style="display: inline-block; background-color: #667eea; color: #ffffff; text-decoration: none; padding: 16px 40px; border-radius: 6px; font-weight: bold;">Pay Now</a></p>
      <p style="color: #999; font-size: 12px; text-align: center;">Or copy this link: <br/><a href="{{.CheckoutURL}}" style="color: #667eea; word-break: break-all;">{{.CheckoutURL}}</a></p>
    </td></tr>
    <tr><td style="background-color: #f8f9fa; padding: 20px; text-align: center;">
      <p style="color: #999; font-size: 12px; margin: 0;">This is an automated payment notification. Please do not reply to this email.</p>
    </td></tr>
  </table>
</body>
</html>
`))

	linkText = texttemplate.Must(texttemplate.New("link").Parse(`Payment Request for Invoice {{.InvoiceNumber}}

Hello {{.CustomerName}},

You have a payment request for invoice {{.InvoiceNumber}}.
{{if .Description}}
{{.Description}}
{{end}}{{if .Items}}
Items:
{{range .Items}}- {{.Description}}: {{.Amount}} x {{.Quantity}}
{{end}}{{end}}
Total Amount: {{.Total}}

Click here to pay: {{.CheckoutURL}}

Thank you!
`))

	confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
  <table width="600" cellpadding="0" cellspacing="0" align="center" style="background-color: #ffffff; border-radius: 8px;">
    <tr><td style="background-color: #10b981; padding: 30px; text-align: center;">
      <h1 style="color: #ffffff; margin: 0; font-size: 28px;">Payment Confirmed</h1>
    </td></tr>
    <tr><td style="padding: 40px 30px; text-align: center;">
      <p style="color: #333; font-size: 18px;">Hello {{.CustomerName}},</p>
      <p style="color: #666; font-size: 16px;">Your payment for invoice <strong>{{.InvoiceNumber}}</strong> has been processed successfully!</p>
      <div style="background-color: #f0fdf4; border: 2px solid #10b981; border-radius: 8px; padding: 20px; margin: 20px 0;">
        <p style="color: #333; font-size: 16px; margin: 0 0 10px 0;">Amount Paid:</p>
        <p style="color: #10b981; font-size: 32px; font-weight: bold; margin: 0;">{{.Total}}</p>
      </div>
      <p style="color: #666; font-size: 14px;"><strong>Transaction ID:</strong> {{.TransactionID}}</p>
      <p style="color: #999; font-size: 12px; margin-top: 30px;">Thank you for your payment!</p>
    </td></tr>
  </table>
</body>
</html>
`))

	confirmationText = texttemplate.Must(texttemplate.New("confirmation").Parse(`Payment Confirmed!

Hello {{.CustomerName}},

Your payment for invoice {{.InvoiceNumber}} has been processed successfully!

Amount Paid: {{.Total}}
Transaction ID: {{.TransactionID}}

Thank you for your payment!
`))
)

// RenderEmail renders the payment-link or confirmation email for m. Failure
// notices go out by SMS only.
func RenderEmail(m Message) (*Email, error) {
	var (
		subject string
		html    *htmltemplate.Template
		text    *texttemplate.Template
	)
	switch m.Kind {
	case KindPaymentLink:
		subject, html, text = "Payment Request - Invoice "+m.InvoiceNumber, linkHTML, linkText
	case KindConfirmation:
		subject, html, text = "Payment Confirmed - Invoice "+m.InvoiceNumber, confirmationHTML, confirmationText
	default:
		return nil, errors.Errorf("no email template for %q", m.Kind)
	}

	v := view(m)
	var hb, tb bytes.Buffer
	if err := html.Execute(&hb, v); err != nil {
		return nil, errors.Wrap(err, "render html body")
	}
	if err := text.Execute(&tb, v); err != nil {
		return nil, errors.Wrap(err, "render text body")
	}
	return &Email{Subject: subject, HTML: hb.String(), Text: strings.TrimSpace(tb.String()) + "\n"}, nil
}
