package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorHandler renders service errors as {"success": false, "error": "..."}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal server error"
		body := fiber.Map{"success": false}

		var (
			fe *fiber.Error
			ve *services.ValidationError
		)
		switch {
		case errors.As(err, &ve):
			status = fiber.StatusBadRequest
			message = ve.Reason
			if len(ve.Fields) > 0 {
				body["fields"] = ve.Fields
				message = ve.Error()
			}
		case errors.Is(err, services.ErrUnauthorized):
			status, message = fiber.StatusUnauthorized, "unauthorized"
		case errors.Is(err, services.ErrNotFound):
			status, message = fiber.StatusNotFound, "not found"
		case errors.Is(err, services.ErrInsufficientBalance):
			status, message = fiber.StatusUnprocessableEntity, err.Error()
		case errors.Is(err, services.ErrStoreUnavailable):
			status, message = fiber.StatusServiceUnavailable, "storage temporarily unavailable"
		case errors.As(err, &fe):
			status, message = fe.Code, fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		body["error"] = message
		return c.Status(status).JSON(body)
	}
}

// decodeBody strictly decodes the JSON body into dst and validates it.
func decodeBody(c *fiber.Ctx, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Invalid("request body is empty")
		}
		return services.Invalid("invalid request body: %v", err)
	}
	if dec.More() {
		return services.Invalid("invalid request body: trailing data")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return services.Invalid("invalid request: %v", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		fields[path] = describe(fe)
	}
	return &services.ValidationError{Reason: "invalid request", Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// queryAny returns the first non-empty query value among names.
func queryAny(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			return v
		}
	}
	return ""
}

// bodyID is an identifier field that clients send either as a string or as a number.
type bodyID string

func (id *bodyID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = bodyID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = bodyID(n.String())
	return nil
}

// firstID returns the first non-empty spelling of an id sent in a body.
func firstID(ids ...bodyID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}
