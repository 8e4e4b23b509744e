package d2o

import (
	"errors"
	"fmt"
)

// Категории ошибок кодека. Проверяются через errors.Is.
var (
	// ErrFormat - неверная сигнатура, повреждённый конверт или усечённые данные
	ErrFormat = errors.New("d2o: format error")
	// ErrSchema - неизвестный тег типа, отсутствующий класс, несовпадение типа значения
	ErrSchema = errors.New("d2o: schema error")
	// ErrResource - файл модуля невозможно прочитать
	ErrResource = errors.New("d2o: resource error")
)

// Error описывает ошибку декодирования с контекстом модуля и позиции
type Error struct {
	Kind   error
	Module string
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: module %q", e.Kind, e.Module)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func formatErr(module string, offset int, err error, format string, args ...interface{}) error {
	return &Error{Kind: ErrFormat, Module: module, Offset: offset, Msg: fmt.Sprintf(format, args...), Err: err}
}

func schemaErr(module string, offset int, format string, args ...interface{}) error {
	return &Error{Kind: ErrSchema, Module: module, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
