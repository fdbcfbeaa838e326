package ap2

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	token16Pattern   = regexp.MustCompile(`^[0-9]{16}$`)
	hex32Pattern     = regexp.MustCompile(`^[0-9A-F]{32}$`)
	card4Pattern     = regexp.MustCompile(`^[0-9]{4}$`)
	currency3Pattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// RegisterValidators wires the AP2 mandate shape checks into gin's shared
// validator engine, following the teacher's validators.go pattern of
// registering custom tags rather than hand-rolling checks in handlers.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("token16", validateToken16); err != nil {
		return err
	}
	if err := v.RegisterValidation("hex32", validateHex32); err != nil {
		return err
	}
	if err := v.RegisterValidation("card4", validateCard4); err != nil {
		return err
	}
	if err := v.RegisterValidation("currency3", validateCurrency3); err != nil {
		return err
	}
	return nil
}

func validateToken16(fl validator.FieldLevel) bool {
	return token16Pattern.MatchString(fl.Field().String())
}

func validateHex32(fl validator.FieldLevel) bool {
	return hex32Pattern.MatchString(fl.Field().String())
}

func validateCard4(fl validator.FieldLevel) bool {
	return card4Pattern.MatchString(fl.Field().String())
}

func validateCurrency3(fl validator.FieldLevel) bool {
	return currency3Pattern.MatchString(fl.Field().String())
}

// ValidateMandateIntegrity re-checks the shape invariants §4.2 step 2
// requires at the point of Complete, independent of the inbound DTO
// binding tags (which only ran at Update time).
func ValidateMandateIntegrity(m *PaymentMandate) error {
	d := m.PaymentMandateContents.PaymentResponse.Details
	if !token16Pattern.MatchString(d.Token) {
		return errMalformed("token must be 16 decimal digits")
	}
	if !hex32Pattern.MatchString(d.Cryptogram) {
		return errMalformed("cryptogram must be 32 uppercase hex characters")
	}
	if !card4Pattern.MatchString(d.CardLastFour) {
		return errMalformed("card_last_four must be 4 digits")
	}
	if !KnownCardNetworks[d.CardNetwork] {
		return errMalformed("card_network not recognized")
	}
	return nil
}

type malformedError string

func (e malformedError) Error() string { return string(e) }

func errMalformed(msg string) error { return malformedError(msg) }
