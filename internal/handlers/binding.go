package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-installments/internal/models"
)

var registerOnce sync.Once

// RegisterValidators teaches gin's validator to read decimal amounts as
// numbers and calendar dates as strings, so tags like gt=0 and required
// work on them.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(models.Date); ok {
				return d.String()
			}
			return nil
		}, models.Date{})
	})
}

// BindNestedOrFlat decodes the body into obj and validates it. Clients may
// wrap the payload under key ({"plan": {...}}) or send it flat.
func BindNestedOrFlat(c *gin.Context, key string, obj any) error {
	var body []byte
	if c.Request.Body != nil {
		var err error
		if body, err = io.ReadAll(c.Request.Body); err != nil {
			return err
		}
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("request body is required")
	}

	payload := body
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(body, &nested); err == nil {
		if inner, ok := nested[key]; ok {
			payload = inner
		}
	}
	if err := json.Unmarshal(payload, obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}
