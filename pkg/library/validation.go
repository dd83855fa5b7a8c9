// Zaparoo Runners
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runners.
//
// Zaparoo Runners is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runners is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runners.  If not, see <http://www.gnu.org/licenses/>.

package library

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/zaparoo-runners/pkg/runners"
	"github.com/go-playground/validator/v10"
)

// ValidationError wraps validator errors with readable messages.
type ValidationError struct {
	Fields []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Value   any
	Field   string
	Tag     string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{
		Fields: make([]FieldError, len(errs)),
	}
	for i, fe := range errs {
		ve.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: formatValidationError(fe),
		}
	}
	return ve
}

func formatValidationError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "runnertype":
		return fmt.Sprintf("runner type %q is not one of System, Wine, Proton", fe.Value())
	case "pathelement":
		return fmt.Sprintf("%s %q must be a single path element", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("runnertype", validateRunnerType)
	_ = v.RegisterValidation("pathelement", validatePathElement)
	return v
}

var defaultValidator = newValidator()

// Validate checks a game record before it is stored.
func Validate(g *Game) error {
	if err := defaultValidator.Struct(g); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return newValidationError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func validateRunnerType(fl validator.FieldLevel) bool {
	_, err := runners.ParseFamily(fl.Field().String())
	return err == nil
}

func validatePathElement(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
