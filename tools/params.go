package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	FieldQueryText            = "query_text"
	FieldMaxCalories          = "max_calories"
	FieldMinProteinG          = "min_protein_g"
	FieldAvailableIngredients = "available_ingredients"
)

// Ingredient is something the user already has. QuantityG is nil when no amount was given.
type Ingredient struct {
	Name      string   `json:"name" validate:"required"`
	QuantityG *float64 `json:"quantity_g,omitempty" validate:"omitempty,gte=0"`
}

// SearchRequest holds the validated arguments of a recipe search.
type SearchRequest struct {
	QueryText            string       `json:"query_text" validate:"required"`
	MaxCalories          *int         `json:"max_calories,omitempty" validate:"omitempty,gt=0"`
	MinProteinG          *int         `json:"min_protein_g,omitempty" validate:"omitempty,gt=0"`
	AvailableIngredients []Ingredient `json:"available_ingredients,omitempty" validate:"omitempty,dive"`
}

// FieldError names one offending argument.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every argument that could not be coerced or validated.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid find_recipes arguments: " + strings.Join(parts, "; ")
}

func (e *ValidationError) has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseSearchRequest coerces raw model arguments into a SearchRequest. Null-like strings
// for the numeric bounds become absent, a {name: grams} object becomes an ingredient list,
// and blank ingredient names are dropped before validation runs.
func ParseSearchRequest(args map[string]any) (SearchRequest, error) {
	var req SearchRequest
	verr := &ValidationError{}

	switch v := args[FieldQueryText].(type) {
	case nil:
	case string:
		req.QueryText = v
	default:
		verr.Fields = append(verr.Fields, FieldError{Field: FieldQueryText, Message: "must be a string"})
	}

	var err error
	if req.MaxCalories, err = coerceBound(args[FieldMaxCalories]); err != nil {
		verr.Fields = append(verr.Fields, FieldError{Field: FieldMaxCalories, Message: err.Error()})
	}
	if req.MinProteinG, err = coerceBound(args[FieldMinProteinG]); err != nil {
		verr.Fields = append(verr.Fields, FieldError{Field: FieldMinProteinG, Message: err.Error()})
	}

	ingredients, ingErrs := coerceIngredients(args[FieldAvailableIngredients])
	req.AvailableIngredients = ingredients
	verr.Fields = append(verr.Fields, ingErrs...)

	req, err = Normalize(req)
	if err != nil {
		var structErr *ValidationError
		if errors.As(err, &structErr) {
			for _, f := range structErr.Fields {
				if !verr.has(f.Field) {
					verr.Fields = append(verr.Fields, f)
				}
			}
		} else {
			return SearchRequest{}, err
		}
	}

	if len(verr.Fields) > 0 {
		return SearchRequest{}, verr
	}
	return req, nil
}

// Normalize trims the query and ingredient names, drops blank ingredients and validates the
// result. Normalizing an already normalized request returns it unchanged.
func Normalize(req SearchRequest) (SearchRequest, error) {
	out := SearchRequest{
		QueryText:   strings.TrimSpace(req.QueryText),
		MaxCalories: req.MaxCalories,
		MinProteinG: req.MinProteinG,
	}

	for _, ing := range req.AvailableIngredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		out.AvailableIngredients = append(out.AvailableIngredients, Ingredient{Name: name, QuantityG: ing.QuantityG})
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return SearchRequest{}, fmt.Errorf("failed to validate search request: %w", err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, FieldError{Field: fieldPath(e), Message: formatValidationError(e)})
		}
		return SearchRequest{}, &ValidationError{Fields: fields}
	}
	return out, nil
}

// Args renders the request back into the argument map a model would send.
func (r SearchRequest) Args() map[string]any {
	args := map[string]any{FieldQueryText: r.QueryText}
	if r.MaxCalories != nil {
		args[FieldMaxCalories] = *r.MaxCalories
	}
	if r.MinProteinG != nil {
		args[FieldMinProteinG] = *r.MinProteinG
	}
	if len(r.AvailableIngredients) > 0 {
		list := make([]any, 0, len(r.AvailableIngredients))
		for _, ing := range r.AvailableIngredients {
			entry := map[string]any{"name": ing.Name}
			if ing.QuantityG != nil {
				entry["quantity_g"] = *ing.QuantityG
			}
			list = append(list, entry)
		}
		args[FieldAvailableIngredients] = list
	}
	return args
}

func isNullSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null":
		return true
	}
	return false
}

// coerceBound accepts integers in any of the shapes a model or JSON decoder produces.
func coerceBound(v any) (*int, error) {
	var n int
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if isNullSentinel(val) {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("must be an integer, got %q", val)
		}
		if n, err = wholeNumber(f); err != nil {
			return nil, err
		}
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("must be an integer, got %q", val.String())
		}
		if n, err = wholeNumber(f); err != nil {
			return nil, err
		}
	case float64:
		var err error
		if n, err = wholeNumber(val); err != nil {
			return nil, err
		}
	case float32:
		var err error
		if n, err = wholeNumber(float64(val)); err != nil {
			return nil, err
		}
	case int:
		n = val
	case int32:
		n = int(val)
	case int64:
		n = int(val)
	default:
		return nil, fmt.Errorf("must be an integer, got %T", v)
	}
	return &n, nil
}

func wholeNumber(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("is out of range")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a whole number, got %v", f)
	}
	return int(f), nil
}

func coerceQuantity(v any) (*float64, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("must be a number, got %q", val.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("must be a number, got %q", val)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("must be a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("must be a finite number")
	}
	return &f, nil
}

// coerceIngredients accepts either a list of {name, quantity_g} objects or a {name: grams}
// object. Entries that are not objects or have a blank name are dropped.
func coerceIngredients(v any) ([]Ingredient, []FieldError) {
	var out []Ingredient
	var errs []FieldError

	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			qty, err := coerceQuantity(val[name])
			if err != nil {
				errs = append(errs, FieldError{Field: FieldAvailableIngredients + "." + name, Message: err.Error()})
				continue
			}
			out = append(out, Ingredient{Name: name, QuantityG: qty})
		}
	case []any:
		for i, item := range val {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			if strings.TrimSpace(name) == "" {
				continue
			}
			qty, err := coerceQuantity(entry["quantity_g"])
			if err != nil {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s[%d].quantity_g", FieldAvailableIngredients, i),
					Message: err.Error(),
				})
				continue
			}
			out = append(out, Ingredient{Name: name, QuantityG: qty})
		}
	case []Ingredient:
		out = append(out, val...)
	default:
		errs = append(errs, FieldError{Field: FieldAvailableIngredients, Message: "must be a list of ingredients"})
	}
	return out, errs
}

// fieldPath turns "SearchRequest.available_ingredients[0].name" into
// "available_ingredients[0].name".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}
