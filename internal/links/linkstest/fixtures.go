package linkstest

import (
	"time"

	"github.com/imrishuroy/go-paymentlinks/internal/links"
)

// Created is the fixed creation time of fixture links.
var Created = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// Link returns a fixture payment link for invoice RO-252656.
func Link(id string, status links.Status) *links.PaymentLink {
	return &links.PaymentLink{
		ID:                 id,
		ProviderLinkRef:    "link2pay_" + id,
		ProviderInvoiceRef: "inv-" + id,
		CheckoutURL:        "https://mxmerchant.com/Link2Pay/udid-1?InvoiceNo=RO-252656",
		Status:             status,
		Amount:             487.50,
		Currency:           "USD",
		Invoice:            links.Invoice{Number: "RO-252656", Description: "Brake Service Complete"},
		Customer:           links.Customer{Name: "Sarah Johnson", Email: "sarah.johnson@email.com", Phone: "+15551234567"},
		EventHistory: []links.HistoryEntry{{
			EventType:   "created",
			Status:      links.StatusCreated,
			Timestamp:   Created,
			Source:      links.SourceSystem,
			Description: "Payment link created",
		}},
		Notifications: links.NotificationStatus{
			SMS:   links.ChannelStatus{Status: links.NotificationPending},
			Email: links.ChannelStatus{Status: links.NotificationPending},
		},
		CreatedAt: Created,
		UpdatedAt: Created,
		TTL:       Created.Add(30 * 24 * time.Hour).Unix(),
	}
}
