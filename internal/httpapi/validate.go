package httpapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"mathify/internal/model"
)

var validatorsOnce sync.Once

// registerValidators adds the yearmonth and hhmm tags to gin's binding
// engine.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Warn().Msg("binding engine is not go-playground/validator; custom tags unavailable")
			return
		}
		_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
			_, err := model.ParseMonth(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("15:04", fl.Field().String())
			return err == nil
		})
	})
}
