// validator.go - разбор и валидация JSON тел запросов.
// Неизвестные поля отклоняются, ограничения полей задаются тегами validate.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes - максимальный размер тела запроса.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях об ошибках используем имена полей из JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON читает тело в dst (неизвестные поля - ошибка) и
// проверяет теги validate. Текст ошибки пригоден для ответа клиенту.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := readJSON(w, r, dst); err != nil {
		return err
	}
	return validateStruct(dst)
}

// readJSON читает ровно один JSON-объект из тела без проверки тегов.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("пустое тело запроса")
		}
		return fmt.Errorf("некорректный JSON: %v", err)
	}
	if dec.More() {
		return errors.New("некорректный JSON: лишние данные после объекта")
	}
	return nil
}

// validateStruct проверяет теги validate и формирует сообщение.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s обязателен", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s: допустимые значения %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid":
		return fmt.Sprintf("%s: ожидается UUID", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s: ожидается дата в формате %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s: не проходит проверку %s", fe.Field(), fe.Tag())
	}
}
