package httpclient

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("httpclient: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

type headerArgs struct {
	Name string `json:"header" validate:"required"`
}

type cookieArgs struct {
	Name string `json:"cookie" validate:"required"`
}

type retryArgs struct {
	Count int `json:"retry" validate:"gte=0"`
}

type timeoutArgs struct {
	Total   time.Duration `json:"timeout" validate:"gt=0"`
	Connect time.Duration `json:"connect_timeout" validate:"gt=0"`
}

type requestArgs struct {
	URL string `json:"url" validate:"required,url"`
}

type downloadArgs struct {
	DestPath string `json:"dest_path" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
}

// check validates args against their declared tags and reports the first
// failing field as an [ArgumentError].
func check(args any) error {
	err := validate.Struct(args)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	verror := verrors[0]
	return &ArgumentError{
		Field:   verror.Field(),
		Message: customErrForTag(verror.Tag(), verror),
	}
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return verror.Field() + " is required"
	default:
		return verror.Translate(translator)
	}
}
