package bytestream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxUTFLength максимальная длина строки, помещающаяся в 16-битный префикс
const MaxUTFLength = math.MaxUint16

// Writer накапливает big-endian значения в растущем буфере
type Writer struct {
	buf []byte
}

// NewWriter создаёт пустой буфер записи
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Bytes возвращает записанные данные (без копирования)
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len возвращает количество записанных байт
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteInt8(v int8) {
	w.buf = append(w.buf, byte(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteUTF пишет строку с 16-битным префиксом длины
func (w *Writer) WriteUTF(s string) error {
	if len(s) > MaxUTFLength {
		return fmt.Errorf("string of %d bytes does not fit a 16-bit length prefix", len(s))
	}
	w.WriteUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// WriteBytes пишет байты как есть
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutInt32At перезаписывает ранее зарезервированный int32 по абсолютной позиции
func (w *Writer) PutInt32At(pos int, v int32) error {
	if pos < 0 || pos+4 > len(w.buf) {
		return fmt.Errorf("patch position %d outside of written data (%d bytes)", pos, len(w.buf))
	}
	binary.BigEndian.PutUint32(w.buf[pos:], uint32(v))
	return nil
}
