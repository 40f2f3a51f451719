package handler

import (
	"errors"
	"net/http"
	"reflect"

	"dutyfree/internal/apierror"
	"dutyfree/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so tags like min=0 and
	// required work on money fields.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs validator tags. On failure it
// writes the response and returns false; the caller returns immediately.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// uuidParam parses a path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// errorStatus maps the service error kinds to HTTP. Anything unknown is a
// 500 and its message is not exposed.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	// first: it wraps the ledger's own error, which may match a kind below
	{service.ErrPaymentFailed, http.StatusBadGateway, "payment_failed"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity"},
	{service.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{service.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{service.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{service.ErrInsufficientReserved, http.StatusConflict, "insufficient_reserved"},
	{service.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{service.ErrPaymentIncomplete, http.StatusConflict, "payment_incomplete"},
	{service.ErrRegisterNotOpen, http.StatusConflict, "register_not_open"},
}

// respondError writes the error response for err.
func respondError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apierror.WithCode(m.code, err.Error()))
			return
		}
	}
	// ErrorHandler logs it and answers with a generic 500
	_ = c.Error(err)
}
