package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
	"github.com/imrishuroy/go-paymentlinks/internal/idempotency"
	"github.com/imrishuroy/go-paymentlinks/internal/validation"
)

func (h *handler) createPaymentLink(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger(c, "createPaymentLink")

	var req validation.CreatePaymentLinkRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, log, err)
		return
	}

	key := ""
	if h.idem != nil {
		key = c.GetHeader(idempotency.HeaderKey)
	}
	if key != "" {
		log = log.WithField("idempotencyKey", key)
		rec, err := h.idem.Begin(ctx, key)
		if err != nil {
			fail(c, log, err)
			return
		}
		if rec != nil {
			if rec.Completed() {
				log.WithField("paymentLinkId", rec.PaymentLinkID).Info("replaying stored response")
				c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
				return
			}
			fail(c, log, apperr.Conflict("Request with this Idempotency-Key is already in progress"))
			return
		}
	}

	res, err := h.svc.Create(ctx, &req)
	if err != nil {
		if key != "" {
			// let the client retry with the same key
			if rerr := h.idem.Release(ctx, key); rerr != nil {
				log.WithField("error", rerr.Error()).Warn("failed to release idempotency key")
			}
		}
		fail(c, log, err)
		return
	}

	body, err := json.Marshal(envelope{Success: true, Data: res})
	if err != nil {
		fail(c, log, err)
		return
	}
	if key != "" {
		if err := h.idem.Complete(ctx, key, res.ID, http.StatusCreated, body); err != nil && !errors.Is(err, idempotency.ErrLost) {
			log.WithField("error", err.Error()).Warn("failed to store idempotent response")
		}
	}

	log.WithFields(logrus.Fields{"paymentLinkId": res.ID, "providerRef": res.ProviderRef}).Info("payment link created")
	c.Header("Location", fmt.Sprintf("/payment-links/%s", res.ID))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

func (h *handler) getPaymentStatus(c *gin.Context) {
	log := h.logger(c, "getPaymentStatus")
	id := c.Param("id")

	view, err := h.svc.GetStatus(c.Request.Context(), id)
	if err != nil {
		fail(c, log.WithField("paymentLinkId", id), err)
		return
	}
	ok(c, http.StatusOK, view)
}

func (h *handler) webhook(c *gin.Context) {
	log := h.logger(c, "handleWebhook")

	body, err := c.GetRawData()
	if err != nil {
		fail(c, log, &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid webhook payload", Err: err})
		return
	}

	res, err := h.svc.HandleWebhook(c.Request.Context(), body)
	if err != nil {
		fail(c, log, err)
		return
	}
	ok(c, http.StatusOK, res)
}
