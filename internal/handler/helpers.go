package handler

import (
	"errors"
	"net/http"
	"reflect"

	"novapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.Validation("Error de validacion", fields))
		return false
	}
	return true
}

// statusForKind maps the error taxonomy to HTTP status codes. The mapping
// lives only here: services never know about HTTP.
func statusForKind(kind apierror.Kind) int {
	switch kind {
	case apierror.KindValidation:
		return http.StatusUnprocessableEntity
	case apierror.KindConflict, apierror.KindState:
		return http.StatusConflict
	case apierror.KindNotFound:
		return http.StatusNotFound
	case apierror.KindDependency:
		return http.StatusServiceUnavailable
	case apierror.KindUnauthorized:
		return http.StatusUnauthorized
	case apierror.KindForbidden:
		return http.StatusForbidden
	case apierror.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error with its kind-derived status.
// Unclassified errors become an opaque 500.
func writeError(c *gin.Context, err error) {
	kind := apierror.KindOf(err)
	if kind == "" {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New(apierror.KindInternal, "Error interno del servidor"))
		return
	}
	var ae *apierror.Error
	if !errors.As(err, &ae) {
		ae = apierror.New(kind, err.Error())
	}
	c.JSON(statusForKind(kind), ae)
}
