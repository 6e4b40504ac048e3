package controllers

import (
	"fmt"

	"civictriage/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the enum checks used in binding tags.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	rules := map[string]validator.Func{
		"issue_category": func(fl validator.FieldLevel) bool {
			return models.IssueCategory(fl.Field().String()).Valid()
		},
		"zone": func(fl validator.FieldLevel) bool {
			return models.Zone(fl.Field().String()).Valid()
		},
		"issue_status": func(fl validator.FieldLevel) bool {
			return models.IssueStatus(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}
