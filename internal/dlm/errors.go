package dlm

import (
	"errors"
	"fmt"
)

// ErrFormat - неверная сигнатура, усечённые данные или неизвестный тип элемента
var ErrFormat = errors.New("dlm: format error")

func formatErr(offset int, err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%w at offset %d: %s: %w", ErrFormat, offset, msg, err)
	}
	return fmt.Errorf("%w at offset %d: %s", ErrFormat, offset, msg)
}
