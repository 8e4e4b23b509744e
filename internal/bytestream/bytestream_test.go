package bytestream

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderSymmetry(t *testing.T) {
	w := NewWriter()
	w.WriteInt8(-128)
	w.WriteUint8(255)
	w.WriteBool(true)
	w.WriteInt16(-2)
	w.WriteUint16(65535)
	w.WriteInt32(-1431655766)
	w.WriteUint32(math.MaxUint32)
	w.WriteInt64(-5)
	w.WriteFloat64(3.25)
	require.NoError(t, w.WriteUTF("héllo"))
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	i8, err := r.ReadInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(-128), i8)

	u8, _ := r.ReadUint8()
	assert.Equal(t, uint8(255), u8)

	b, _ := r.ReadBool()
	assert.True(t, b)

	i16, _ := r.ReadInt16()
	assert.Equal(t, int16(-2), i16)

	u16, _ := r.ReadUint16()
	assert.Equal(t, uint16(65535), u16)

	i32, _ := r.ReadInt32()
	assert.Equal(t, int32(-1431655766), i32)

	u32, _ := r.ReadUint32()
	assert.Equal(t, uint32(math.MaxUint32), u32)

	i64, _ := r.ReadInt64()
	assert.Equal(t, int64(-5), i64)

	f, _ := r.ReadFloat64()
	assert.Equal(t, 3.25, f)

	s, err := r.ReadUTF()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
	assert.Equal(t, 0, r.Remaining())
}

func TestBigEndianLayout(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, w.Bytes())
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{0, 1})
	_, err := r.ReadInt32()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	// Неудачное чтение не сдвигает позицию
	assert.Equal(t, 0, r.Position())

	r = NewReader([]byte{0, 5, 'a'})
	_, err = r.ReadUTF()
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestSeekAndSkip(t *testing.T) {
	r := NewReader(make([]byte, 10))
	require.NoError(t, r.Seek(4))
	assert.Equal(t, 6, r.Remaining())
	require.NoError(t, r.Skip(6))
	assert.Equal(t, 10, r.Position())
	assert.Error(t, r.Skip(1))
	assert.Error(t, r.Seek(-1))
	assert.Error(t, r.Skip(-1))
}

func TestWriteUTFTooLong(t *testing.T) {
	w := NewWriter()
	err := w.WriteUTF(strings.Repeat("x", MaxUTFLength+1))
	assert.Error(t, err)
	assert.Equal(t, 0, w.Len())
}

func TestPutInt32At(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(0)
	w.WriteUint8(9)
	require.NoError(t, w.PutInt32At(0, 7))
	assert.Equal(t, []byte{0, 0, 0, 7, 9}, w.Bytes())
	assert.Error(t, w.PutInt32At(2, 1))
}

func TestReadBoolRejectsOtherBytes(t *testing.T) {
	r := NewReader([]byte{0, 1, 2})

	v, err := r.ReadBool()
	require.NoError(t, err)
	assert.False(t, v)

	v, err = r.ReadBool()
	require.NoError(t, err)
	assert.True(t, v)

	_, err = r.ReadBool()
	assert.ErrorIs(t, err, ErrInvalidBool)
	assert.Equal(t, 2, r.Position())
}
