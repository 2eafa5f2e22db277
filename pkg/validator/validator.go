package validator

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"course-platform-backend/internal/models"
)

var (
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	strict    *bluemonday.Policy
	initOnce  sync.Once

	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	urlPattern   = regexp.MustCompile(`^https?://[a-zA-Z0-9\-\.]+(:[0-9]+)?(/.*)?$`)
	spacePattern = regexp.MustCompile(`\s+`)
)

func Init() {
	initOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")

		sanitizer = bluemonday.UGCPolicy()
		strict = bluemonday.StrictPolicy()

		registerCustomValidations(validate)

		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustomValidations(engine)
		}
	})
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("slug", validateSlug)
	v.RegisterValidation("no_html", validateNoHTML)
	v.RegisterValidation("content_kind", validateContentKind)
}

func Validate(s interface{}) error {
	Init()
	return validate.Struct(s)
}

// SanitizeHTML keeps user-generated markup that is safe to render.
func SanitizeHTML(html string) string {
	Init()
	return sanitizer.Sanitize(html)
}

// SanitizeString strips every tag.
func SanitizeString(s string) string {
	Init()
	return strict.Sanitize(s)
}

func NormalizeSpaces(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

func validateNoHTML(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return !strings.Contains(value, "<") && !strings.Contains(value, ">")
}

func validateContentKind(fl validator.FieldLevel) bool {
	_, ok := models.ParseContentKind(fl.Field().String())
	return ok
}
