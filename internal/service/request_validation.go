package service

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

// reserved by the document database
var reservedTenantIDs = map[string]bool{
	"admin":  true,
	"local":  true,
	"config": true,
}

// ValidTenantID reports whether id can name a tenant database
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id) && !reservedTenantIDs[id]
}

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("tenantid", func(fl validator.FieldLevel) bool {
		return ValidTenantID(fl.Field().String())
	})
	return v
}

// checkProvisionRequest maps struct validation failures to API errors. A
// missing field wins over any other failure.
func checkProvisionRequest(v *validator.Validate, req *model.ProvisionRequest) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequest("invalid provisioning request", err)
	}

	var msgs []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return apierrors.MissingField("Missing required fields")
		}
		msgs = append(msgs, fmt.Sprintf("Database name %s is not allowed", fe.Value()))
	}
	return apierrors.Validation(msgs)
}
