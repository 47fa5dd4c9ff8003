package result

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

var (
	marksTag  = "marks"
	marksText = "Marks must be between 0 and 100"

	letterTag  = "letter"
	letterText = "unknown letter grade"
)

// InitValidators registers the result validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(marksTag, marksValidation)
	core.RegisterCustomTranslation(validate, translator, marksTag, marksText)

	_ = validate.RegisterValidation(letterTag, letterValidation)
	core.RegisterCustomTranslation(validate, translator, letterTag, letterText)

	validate.RegisterStructValidation(calcEntryStructValidation, CalcEntry{})
}

func marksValidation(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return grade.ValidScore(fl.Field().Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return grade.ValidScore(float64(fl.Field().Int()))
	}
	return false
}

func letterValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := grade.ParseLetter(s)
	return err == nil
}

// calcEntryStructValidation requires marks or a letter. The letter is ignored
// (and not checked) when marks are given.
func calcEntryStructValidation(sl validator.StructLevel) {
	entry := sl.Current().Interface().(CalcEntry)
	if entry.Marks != nil {
		return
	}
	if strings.TrimSpace(entry.Letter) == "" {
		sl.ReportError(entry.Marks, "marks", "Marks", "required", "")
		return
	}
	if _, err := grade.ParseLetter(entry.Letter); err != nil {
		sl.ReportError(entry.Letter, "letter", "Letter", letterTag, "")
	}
}
