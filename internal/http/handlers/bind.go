package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON decodes and validates the body, answering 400 (or 413) itself on failure.
//
// Request fields may carry a msg tag holding the client-facing text for any rule they break,
// e.g. `json:"email" binding:"required,email" msg:"Please provide a valid email"`.
func BindJSON(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return false
	}

	msg, details := parseBindError(err, baseStructType(out))
	RespondBadRequest(ctx, msg, details...)

	return false
}

func parseBindError(err error, root reflect.Type) (string, []string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		seen := make(map[string]bool, len(verrs))

		for _, fe := range verrs {
			d := fieldMessage(root, fe)
			if !seen[d] {
				seen[d] = true
				details = append(details, d)
			}
		}
		return "Validation failed", details
	}

	if errors.Is(err, io.EOF) {
		return "Invalid request body", []string{"request body is empty"}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "Invalid request body", []string{"invalid JSON syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if sf, ok := structField(root, field); ok {
			field = jsonName(sf)
		}
		if field == "" {
			return "Invalid request body", []string{"request body must be a JSON object"}
		}
		return "Invalid request body", []string{field + " must be of type " + jsonKind(typeErr.Type)}
	}

	return "Invalid request body", nil
}

func fieldMessage(root reflect.Type, fe validator.FieldError) string {
	sf, ok := structField(root, fe.StructField())
	if !ok {
		return fe.Field() + " " + ruleMessage(fe.Tag(), fe.Param())
	}

	if custom := sf.Tag.Get("msg"); custom != "" {
		return custom
	}

	return jsonName(sf) + " " + ruleMessage(fe.Tag(), fe.Param())
}

// structField finds a top-level field by its Go name; request payloads here are flat.
func structField(root reflect.Type, name string) (reflect.StructField, bool) {
	if root == nil || name == "" || strings.Contains(name, ".") {
		return reflect.StructField{}, false
	}
	return root.FieldByName(name)
}

func baseStructType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return sf.Name
	}
	return name
}

// jsonKind names t the way a JSON client thinks about it.
func jsonKind(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "value"
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return t.String()
	}
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return "failed " + rule + " validation (" + param + ")"
		}
		return "failed " + rule + " validation"
	}
}
