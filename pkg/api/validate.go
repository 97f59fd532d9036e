package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cuemby/hutch/pkg/types"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createWorkspaceRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	// Pointers distinguish an omitted limit, which takes the default,
	// from an explicit zero, which is rejected.
	CPULimit    *float64 `json:"cpuLimit" validate:"omitempty,gt=0"`
	MemoryLimit *string  `json:"memoryLimit" validate:"omitempty,max=32"`
}

type checkoutRequest struct {
	PlanID string `json:"plan_id" validate:"required,max=100"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// newValidator builds the shared validator, reporting field names by
// their json tag so validation details match the wire format.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads the JSON request body into dst and applies its
// validation tags.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return decodeError(err)
	}
	return s.validateStruct(dst)
}

// decodeOptional is decode for endpoints whose body may be omitted
// entirely.
func (s *Server) decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return decodeError(err)
	}
	return s.validateStruct(dst)
}

func decodeError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return types.NewError(types.KindValidation, "request body too large")
	}
	return types.NewError(types.KindValidation, "invalid request body")
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.WrapError(types.KindValidation, "invalid request", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = validationMessage(fe)
	}
	return types.NewError(types.KindValidation, "invalid request").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "is too long"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
