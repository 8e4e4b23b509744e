package dlm

import "github.com/annel0/mmo-assets/internal/bytestream"

// reader запоминает первую ошибку чтения; после неё все чтения возвращают нули.
// Декодирование карты линейное, поэтому ошибку достаточно проверить в контрольных точках.
type reader struct {
	*bytestream.Reader
	err error
}

func newReader(r *bytestream.Reader) *reader {
	return &reader{Reader: r}
}

func (d *reader) fail(pos int, err error, what string) {
	if d.err == nil {
		d.err = formatErr(pos, err, "%s", what)
	}
}

func (d *reader) uint8(what string) uint8 {
	if d.err != nil {
		return 0
	}
	pos := d.Position()
	v, err := d.ReadUint8()
	if err != nil {
		d.fail(pos, err, what)
	}
	return v
}

func (d *reader) int8(what string) int8 {
	return int8(d.uint8(what))
}

func (d *reader) bool(what string) bool {
	if d.err != nil {
		return false
	}
	pos := d.Position()
	v, err := d.ReadBool()
	if err != nil {
		d.fail(pos, err, what)
	}
	return v
}

// count16 читает int16 длину списка, отрицательная длина - ошибка формата
func (d *reader) count16(what string) int {
	pos := d.Position()
	n := d.int16(what)
	if d.err == nil && n < 0 {
		d.err = formatErr(pos, nil, "negative %s %d", what, n)
		return 0
	}
	return int(n)
}

func (d *reader) uint16(what string) uint16 {
	if d.err != nil {
		return 0
	}
	pos := d.Position()
	v, err := d.ReadUint16()
	if err != nil {
		d.fail(pos, err, what)
	}
	return v
}

func (d *reader) int16(what string) int16 {
	return int16(d.uint16(what))
}

func (d *reader) uint32(what string) uint32 {
	if d.err != nil {
		return 0
	}
	pos := d.Position()
	v, err := d.ReadUint32()
	if err != nil {
		d.fail(pos, err, what)
	}
	return v
}

func (d *reader) int32(what string) int32 {
	return int32(d.uint32(what))
}

func (d *reader) bytes(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	pos := d.Position()
	b, err := d.ReadBytes(n)
	if err != nil {
		d.fail(pos, err, what)
	}
	return b
}
