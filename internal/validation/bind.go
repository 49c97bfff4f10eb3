package validation

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
)

// BindAndValidate binds the JSON body into out, validates it and applies
// defaults. An empty body is treated as {}. Errors are apperr validation
// errors for the handler to render.
func BindAndValidate(c *gin.Context, out *CreatePaymentLinkRequest, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid JSON in request body", Err: err}
	}
	if err := Validate(v, out); err != nil {
		return err
	}
	out.ApplyDefaults()
	return nil
}
