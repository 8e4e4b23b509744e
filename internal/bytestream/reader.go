package bytestream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidBool - байт логического значения не равен 0 или 1
var ErrInvalidBool = errors.New("invalid bool byte")

// Reader читает big-endian значения фиксированной ширины из буфера.
// Любое чтение за пределами буфера возвращает ошибку, обёрнутую вокруг io.ErrUnexpectedEOF.
type Reader struct {
	buf []byte
	pos int
}

// NewReader создаёт курсор над буфером, позиция 0
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Position возвращает текущую абсолютную позицию
func (r *Reader) Position() int {
	return r.pos
}

// Len возвращает полный размер буфера
func (r *Reader) Len() int {
	return len(r.buf)
}

// Remaining возвращает количество непрочитанных байт
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Seek переходит на абсолютную позицию
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("seek to %d outside of [0,%d]: %w", pos, len(r.buf), io.ErrUnexpectedEOF)
	}
	r.pos = pos
	return nil
}

// Skip сдвигает позицию на n байт вперёд
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("negative skip %d at %d", n, r.pos)
	}
	return r.Seek(r.pos + n)
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at %d, have %d: %w", n, r.pos, r.Remaining(), io.ErrUnexpectedEOF)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadBool читает байт 0 или 1. Другие значения не переживут перекодирование, поэтому отклоняются.
func (r *Reader) ReadBool() (bool, error) {
	pos := r.pos
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		r.pos = pos
		return false, fmt.Errorf("byte %d at %d: %w", v, pos, ErrInvalidBool)
	}
	return v == 1, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat64 читает IEEE-754 double
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadUTF читает строку с 16-битным префиксом длины
func (r *Reader) ReadUTF() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes возвращает копию следующих n байт
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
