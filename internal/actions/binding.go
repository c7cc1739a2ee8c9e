package actions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/feedloop/paygate/internal/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var jsonFieldNames sync.Once

// useJSONFieldNames makes validation issues name fields the way clients
// send them.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// BindJSON decodes and validates body into obj. Schema violations become a
// ValidationFailed error listing every offending field.
func BindJSON(body []byte, obj interface{}) error {
	useJSONFieldNames()
	if len(body) == 0 {
		return models.NewBadRequest("request body is required")
	}
	if err := binding.JSON.BindBody(body, obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			issues := make([]models.Issue, 0, len(verrs))
			for _, fe := range verrs {
				issues = append(issues, models.Issue{Field: fieldPath(fe), Message: issueMessage(fe)})
			}
			return models.NewValidationFailed("validation failed", issues)
		}
		return models.NewBadRequest("invalid JSON body")
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
