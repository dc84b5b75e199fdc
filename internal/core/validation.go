package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"admissions/pkg/domain"
)

const notBlankTag = "notblank"

// IssueSlipRequest is the caller input for creating a record.
type IssueSlipRequest struct {
	Name        string        `json:"name" validate:"notblank"`
	Class       string        `json:"class" validate:"notblank"`
	Gender      domain.Gender `json:"gender" validate:"required,oneof=Male Female"`
	CheatNumber string        `json:"cheatNumber" validate:"notblank"`
}

// PaymentRequest carries the amount text entered by the accountant. Blank
// means the standard fee.
type PaymentRequest struct {
	Amount string `json:"amount"`
}

// ReviewRequest carries the rector decision. Approve must be present so a
// missing field is never read as a decline.
type ReviewRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// RestoreRequest names the backup to restore.
type RestoreRequest struct {
	Key string `json:"key" binding:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validationError converts the first validator failure into a domain error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	msg := "is invalid"
	switch fe.Tag() {
	case notBlankTag, "required":
		msg = "is required"
	case "oneof":
		msg = "must be one of " + fe.Param()
	}
	return domain.ValidationError{Field: fe.Field(), Message: msg}
}
