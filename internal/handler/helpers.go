package handler

import (
	"errors"
	"net/http"
	"reflect"

	"cobranzas/internal/apierror"
	"cobranzas/internal/service"

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
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validar(c, req)
}

// bindQuery is bindAndValidate for query strings. completar runs between
// binding and validation (claims, defaults).
func bindQuery(c *gin.Context, req interface{}, completar func()) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	if completar != nil {
		completar()
	}
	return validar(c, req)
}

func validar(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// responderError maps service errors onto the apierror envelope. Anything
// unexpected goes through the ErrorHandler middleware as a 500.
func responderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFiltrosInvalidos), errors.Is(err, service.ErrTipoDesconocido):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	case errors.Is(err, errSinEmision):
		c.JSON(http.StatusGatewayTimeout, apierror.New("La vista no respondio a tiempo"))
	default:
		_ = c.Error(err)
	}
}
