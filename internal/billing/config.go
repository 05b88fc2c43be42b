package billing

import (
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/billingbridge/internal/domain/errors"
	"github.com/go-playground/validator/v10"
)

const DefaultCurrency = "usd"

// ServiceConfig is the per-app configuration of a Service. It is copied into
// the Service and never changed afterwards.
type ServiceConfig struct {
	AppName                    string `validate:"required"`
	AppVersion                 string `validate:"required"`
	Currency                   string `validate:"omitempty,len=3,lowercase,alpha"`
	APIKey                     string `validate:"required,startswith=sk_"`
	WebhookSigningSecret       string `validate:"required"`
	RequiredProviderAPIVersion string `validate:"required"`
}

var configValidator = validator.New()

// Validate reports every problem with cfg as a ConfigurationError.
func Validate(cfg ServiceConfig) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domainErrors.NewConfigurationError("", err.Error())
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, domainErrors.NewConfigurationError(fe.Field(), describe(fe)))
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "lowercase", "alpha":
		return "must be a lowercase ISO currency code"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func (c ServiceConfig) currency() string {
	if c.Currency == "" {
		return DefaultCurrency
	}
	return c.Currency
}
