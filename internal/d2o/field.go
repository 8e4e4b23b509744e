package d2o

import (
	"fmt"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

// FieldDescriptor - одно поле схемы: имя и тип.
// Порядок полей в классе определяет порядок в бинарных данных.
type FieldDescriptor struct {
	Name string
	Type *FieldType
}

// NewField создаёт описание поля
func NewField(name string, typ *FieldType) *FieldDescriptor {
	return &FieldDescriptor{Name: name, Type: typ}
}

type chainEntry struct {
	name string
	tag  TypeTag
}

// readField разбирает определение поля: имя, тег и, для векторов, цепочку внутренних типов
func readField(r *bytestream.Reader, module string) (*FieldDescriptor, error) {
	start := r.Position()
	name, err := r.ReadUTF()
	if err != nil {
		return nil, formatErr(module, start, err, "field name")
	}
	tagPos := r.Position()
	tag, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(module, tagPos, err, "field %q type tag", name)
	}

	if TypeTag(tag) != TagVector {
		typ, ok := leafType(TypeTag(tag))
		if !ok {
			return nil, schemaErr(module, tagPos, "field %q: unknown type tag %d", name, tag)
		}
		return NewField(name, typ), nil
	}

	var chain []chainEntry
	for {
		pos := r.Position()
		innerName, err := r.ReadUTF()
		if err != nil {
			return nil, formatErr(module, pos, err, "field %q: vector inner type name", name)
		}
		innerTag, err := r.ReadInt32()
		if err != nil {
			return nil, formatErr(module, pos, err, "field %q: vector inner type tag", name)
		}
		chain = append(chain, chainEntry{name: innerName, tag: TypeTag(innerTag)})
		if TypeTag(innerTag) != TagVector {
			break
		}
	}

	last := chain[len(chain)-1]
	elem, ok := leafType(last.tag)
	if !ok {
		return nil, schemaErr(module, tagPos, "field %q: unknown vector element tag %d", name, last.tag)
	}
	elem.Name = last.name
	for i := len(chain) - 2; i >= 0; i-- {
		elem = &FieldType{Kind: KindList, Tag: TagVector, Name: chain[i].name, Elem: elem}
	}
	return NewField(name, &FieldType{Kind: KindList, Tag: TagVector, Elem: elem}), nil
}

// writeDefinition - зеркало readField
func (f *FieldDescriptor) writeDefinition(w *bytestream.Writer) error {
	if err := w.WriteUTF(f.Name); err != nil {
		return err
	}
	w.WriteInt32(int32(f.Type.Tag))
	if f.Type.Kind != KindList {
		return nil
	}
	for e := f.Type.Elem; e != nil; e = e.Elem {
		if err := w.WriteUTF(e.Name); err != nil {
			return err
		}
		w.WriteInt32(int32(e.Tag))
		if e.Kind != KindList {
			break
		}
	}
	return nil
}

// Decode читает значение поля из курсора
func (f *FieldDescriptor) Decode(r *bytestream.Reader, res Resolver) (interface{}, error) {
	v, err := decodeValue(r, f.Type, res)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return v, nil
}

// Encode пишет значение поля
func (f *FieldDescriptor) Encode(w *bytestream.Writer, v interface{}, res Resolver) error {
	if err := encodeValue(w, f.Type, v, res); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	return nil
}

func decodeValue(r *bytestream.Reader, t *FieldType, res Resolver) (interface{}, error) {
	pos := r.Position()
	var (
		v   interface{}
		err error
	)
	switch t.Kind {
	case KindInt32:
		v, err = r.ReadInt32()
	case KindUInt32:
		v, err = r.ReadUint32()
	case KindBool:
		v, err = r.ReadBool()
	case KindDouble:
		v, err = r.ReadFloat64()
	case KindString:
		v, err = r.ReadUTF()
	case KindI18N:
		var id int32
		id, err = r.ReadInt32()
		v = I18NID(id)
	case KindRecord:
		return readRecord(r, res)
	case KindList:
		return decodeList(r, t, res)
	default:
		return nil, schemaErr(res.Module(), pos, "unknown field kind %v", t.Kind)
	}
	if err != nil {
		return nil, formatErr(res.Module(), pos, err, "%v value", t.Kind)
	}
	return v, nil
}

func decodeList(r *bytestream.Reader, t *FieldType, res Resolver) (interface{}, error) {
	pos := r.Position()
	n, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(res.Module(), pos, err, "list length")
	}
	// Каждый элемент занимает хотя бы один байт
	if n < 0 || int(n) > r.Remaining() {
		return nil, formatErr(res.Module(), pos, nil, "invalid list length %d", n)
	}
	items := make([]interface{}, 0, n)
	for i := int32(0); i < n; i++ {
		item, err := decodeValue(r, t.Elem, res)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func readRecord(r *bytestream.Reader, res Resolver) (Record, error) {
	pos := r.Position()
	id, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(res.Module(), pos, err, "class id")
	}
	if id == NullClassID {
		return nil, nil
	}
	cls, ok := res.Class(id)
	if !ok {
		return nil, schemaErr(res.Module(), pos, "class id %d is not in the class table", id)
	}
	return cls.Decode(r, res)
}

func writeRecord(w *bytestream.Writer, rec Record, res Resolver) error {
	if rec == nil {
		w.WriteInt32(NullClassID)
		return nil
	}
	name := rec.ClassName()
	id, ok := res.ClassID(name)
	if !ok {
		return schemaErr(res.Module(), -1, "record type %q has no class id", name)
	}
	cls, _ := res.Class(id)
	w.WriteInt32(id)
	return cls.Encode(w, rec, res)
}

func encodeValue(w *bytestream.Writer, t *FieldType, v interface{}, res Resolver) error {
	mismatch := func() error {
		return schemaErr(res.Module(), -1, "expected %v value, got %T", t, v)
	}
	switch t.Kind {
	case KindInt32:
		x, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		w.WriteInt32(x)
	case KindUInt32:
		x, ok := v.(uint32)
		if !ok {
			return mismatch()
		}
		w.WriteUint32(x)
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		w.WriteBool(x)
	case KindDouble:
		x, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		w.WriteFloat64(x)
	case KindString:
		x, ok := v.(string)
		if !ok {
			return mismatch()
		}
		return w.WriteUTF(x)
	case KindI18N:
		switch x := v.(type) {
		case I18NID:
			w.WriteInt32(int32(x))
		case int32:
			w.WriteInt32(x)
		default:
			return mismatch()
		}
	case KindRecord:
		if v == nil {
			return writeRecord(w, nil, res)
		}
		rec, ok := v.(Record)
		if !ok {
			return mismatch()
		}
		return writeRecord(w, rec, res)
	case KindList:
		if v == nil {
			w.WriteInt32(0)
			return nil
		}
		items, ok := v.([]interface{})
		if !ok {
			return mismatch()
		}
		w.WriteInt32(int32(len(items)))
		for i, item := range items {
			if err := encodeValue(w, t.Elem, item, res); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	default:
		return schemaErr(res.Module(), -1, "unknown field kind %v", t.Kind)
	}
	return nil
}
