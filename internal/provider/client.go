package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/config"
)

const (
	link2PayDeviceType = "Link2Pay"
	defaultTimeout     = 30 * time.Second
)

// Client talks to the MX Merchant REST API and builds Link2Pay hosted page URLs.
type Client struct {
	cfg        config.MX
	merchantID int64
	http       *http.Client
	devices    DeviceCache
	log        *logrus.Entry
	nowFunc    func() time.Time
}

// NewClient returns a configuration error when credentials are missing. A nil
// devices cache gets a per-process in-memory one.
func NewClient(cfg config.MX, devices DeviceCache, log *logrus.Entry) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	merchantID, err := strconv.ParseInt(strings.TrimSpace(cfg.MerchantID), 10, 64)
	if err != nil {
		return nil, apperr.Configuration("MX Merchant merchant id must be numeric")
	}
	if cfg.PaymentPageURL == "" {
		cfg.PaymentPageURL = "https://mxmerchant.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if devices == nil {
		devices = NewMemoryDeviceCache()
	}
	return &Client{
		cfg:        cfg,
		merchantID: merchantID,
		http:       &http.Client{Timeout: cfg.Timeout},
		devices:    devices,
		log:        log,
		nowFunc:    time.Now,
	}, nil
}

// CreateCheckout resolves the Link2Pay device and builds the hosted page URL.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	log := c.log.WithFields(logrus.Fields{
		"invoiceNumber": req.Invoice.Number,
		"amount":        req.Amount,
		"customerEmail": req.Customer.Email,
	})
	log.Info("creating Link2Pay payment URL")

	udid, err := c.deviceID(ctx)
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to get or create Link2Pay device")
		return nil, err
	}

	checkout := &Checkout{
		Ref:      "link2pay_" + uuid.NewString(),
		DeviceID: udid,
		URL:      c.hostedPageURL(udid, req),
	}
	log.WithFields(logrus.Fields{"udid": udid, "ref": checkout.Ref}).Info("payment link created")
	return checkout, nil
}

// GetStatus fetches the provider's current status for ref.
func (c *Client) GetStatus(ctx context.Context, ref string) (*StatusSnapshot, error) {
	var snap StatusSnapshot
	if err := c.do(ctx, "get payment link status", http.MethodGet, "/paymentLinks/"+url.PathEscape(ref), nil, nil, &snap); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"ref": ref, "providerStatus": snap.Status}).Info("payment link status retrieved")
	return &snap, nil
}

func (c *Client) hostedPageURL(udid string, req CheckoutRequest) string {
	q := url.Values{}
	q.Set("Amt", decimal.NewFromFloat(req.Amount).StringFixed(2))
	q.Set("InvoiceNo", req.Invoice.Number)
	q.Set("CustomerName", req.Customer.Name)
	q.Set("CustomerEmail", req.Customer.Email)
	if req.Customer.Phone != "" {
		q.Set("CustomerPhone", req.Customer.Phone)
	}
	if req.Invoice.Description != "" {
		q.Set("Memo", req.Invoice.Description)
	}
	for i, item := range req.LineItems {
		n := i + 1
		if item.Description != "" {
			q.Set(fmt.Sprintf("Item%dDescription", n), item.Description)
		}
		if item.UnitPrice != 0 || item.TotalPrice != 0 {
			amt := decimal.NewFromFloat(item.TotalPrice)
			if item.TotalPrice == 0 {
				qty := item.Quantity
				if qty == 0 {
					qty = 1
				}
				amt = decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(qty)))
			}
			q.Set(fmt.Sprintf("Item%dAmount", n), amt.StringFixed(2))
		}
		if item.Quantity != 0 {
			q.Set(fmt.Sprintf("Item%dQuantity", n), strconv.Itoa(item.Quantity))
		}
	}
	return fmt.Sprintf("%s/Link2Pay/%s?%s", strings.TrimRight(c.cfg.PaymentPageURL, "/"), url.PathEscape(udid), q.Encode())
}

// deviceID returns the cached Link2Pay device, or finds or creates one.
func (c *Client) deviceID(ctx context.Context) (string, error) {
	if udid, err := c.devices.Load(ctx); err == nil && udid != "" {
		return udid, nil
	} else if err != nil {
		c.log.WithField("error", err.Error()).Warn("device cache read failed")
	}

	release := c.devices.Lock(ctx)
	defer release()

	// another holder may have filled the cache while we waited
	if udid, err := c.devices.Load(ctx); err == nil && udid != "" {
		return udid, nil
	}

	udid, err := c.findDevice(ctx)
	if err != nil {
		return "", err
	}
	if udid == "" {
		if udid, err = c.createDevice(ctx); err != nil {
			return "", err
		}
		c.log.WithField("udid", udid).Info("created new Link2Pay device")
	} else {
		c.log.WithField("udid", udid).Info("using existing Link2Pay device")
	}

	if err := c.devices.Store(ctx, udid); err != nil {
		c.log.WithField("error", err.Error()).Warn("device cache write failed")
	}
	return udid, nil
}

func (c *Client) findDevice(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("merchantId", c.cfg.MerchantID)
	q.Set("deviceType", link2PayDeviceType)

	var devices []device
	if err := c.do(ctx, "list Link2Pay devices", http.MethodGet, "/device", q, nil, &devices); err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.Enabled && d.DeviceType == link2PayDeviceType && d.UDID != "" {
			return d.UDID, nil
		}
	}
	return "", nil
}

func (c *Client) createDevice(ctx context.Context) (string, error) {
	body := createDeviceRequest{
		Name:         fmt.Sprintf("Payment Link API %d", c.nowFunc().UnixMilli()),
		Description:  "Hosted payment page for API",
		DeviceType:   link2PayDeviceType,
		MerchantID:   c.merchantID,
		Enabled:      true,
		OnSuccessURL: c.cfg.SuccessURL,
		OnFailureURL: c.cfg.FailureURL,
	}
	q := url.Values{}
	q.Set("echo", "true")

	var created device
	if err := c.do(ctx, "create Link2Pay device", http.MethodPost, "/device", q, body, &created); err != nil {
		return "", err
	}
	if created.UDID == "" {
		return "", &Error{Op: "create Link2Pay device", StatusCode: http.StatusOK, Message: "response carried no UDID"}
	}
	return created.UDID, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: marshal request", op)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s: read response", op)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: eb.Message}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}
