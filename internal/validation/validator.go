package validation

import (
	"regexp"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-paymentlinks/internal/apperr"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// New returns a validator with the payment link rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	_ = v.RegisterValidation("phone", func(fl validatorv10.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("loose_email", func(fl validatorv10.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(createRequestStructValidation, CreatePaymentLinkRequest{})

	return v
}

// createRequestStructValidation requires a positive amount.
func createRequestStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreatePaymentLinkRequest)
	if req.Amount == nil || !req.Amount.IsPositive() {
		sl.ReportError(req.Amount, "amount", "Amount", "positive_amount", "")
	}
}

// Caller-facing messages, most important first. Only the first failing rule
// is reported.
var fieldMessages = []struct {
	field, tag, message string
}{
	{"Invoice.Number", "", "Invoice number is required"},
	{"Customer.Name", "", "Customer name and email are required"},
	{"Customer.Email", "required", "Customer name and email are required"},
	{"Amount", "", "Valid amount is required"},
	{"Customer.Email", "", "Valid customer email is required"},
	{"Customer.Phone", "", "Valid customer phone number is required"},
	{"Currency", "", "Currency must be USD or CAD"},
	{"LineItems", "", "Line item quantities and prices must not be negative"},
}

// Validate checks req and returns an apperr validation error with one
// caller-facing message.
func Validate(v *validatorv10.Validate, req *CreatePaymentLinkRequest) error {
	if msg := missingFields(req); msg != "" {
		return apperr.Validation(msg)
	}
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return apperr.Validation(err.Error())
	}
	return apperr.Validation(firstMessage(ve))
}

func missingFields(req *CreatePaymentLinkRequest) string {
	var missing []string
	if req.Amount == nil || req.Amount.IsZero() {
		missing = append(missing, "amount")
	}
	if req.Invoice == nil {
		missing = append(missing, "invoice")
	}
	if req.Customer == nil {
		missing = append(missing, "customer")
	}
	if len(missing) == 0 {
		return ""
	}
	return "Missing required fields: " + strings.Join(missing, ", ")
}

func firstMessage(ve validatorv10.ValidationErrors) string {
	for _, fm := range fieldMessages {
		for _, fe := range ve {
			field := fieldPath(fe.StructNamespace())
			if !strings.HasPrefix(field, fm.field) {
				continue
			}
			if fm.tag != "" && fe.Tag() != fm.tag {
				continue
			}
			return fm.message
		}
	}
	return "Invalid request"
}

// fieldPath strips the root type and slice indexes:
// "CreatePaymentLinkRequest.LineItems[0].Quantity" -> "LineItems.Quantity".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	for {
		open := strings.Index(ns, "[")
		if open < 0 {
			return ns
		}
		end := strings.Index(ns[open:], "]")
		if end < 0 {
			return ns
		}
		ns = ns[:open] + ns[open+end+1:]
	}
}
