package d2o

import (
	"fmt"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

type builtRecord struct {
	key int32
	rec Record
}

// Builder собирает файл D2O из дескрипторов классов и записей.
// Записи пишутся в порядке добавления, индекс - в том же порядке.
type Builder struct {
	name      string
	classes   *ClassTable
	records   []builtRecord
	envelope  []byte
	enveloped bool
}

// NewBuilder создаёт сборщик модуля
func NewBuilder(name string) *Builder {
	return &Builder{name: name, classes: newClassTable()}
}

func (b *Builder) Module() string { return b.name }

func (b *Builder) Class(id int32) (*ClassDescriptor, bool) { return b.classes.Class(id) }

func (b *Builder) ClassID(name string) (int32, bool) { return b.classes.ClassID(name) }

// NewRecord не нужен при записи; сборщик не создаёт экземпляры
func (b *Builder) NewRecord(className string) (Record, error) {
	return nil, fmt.Errorf("%w: builder cannot instantiate %q", ErrSchema, className)
}

// AddClass добавляет схему класса
func (b *Builder) AddClass(cls *ClassDescriptor) error {
	if cls.ID <= 0 {
		return fmt.Errorf("%w: class %s has non-positive id %d", ErrSchema, cls.Name, cls.ID)
	}
	if err := b.classes.add(cls); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// Add добавляет запись под ключом индекса
func (b *Builder) Add(key int32, rec Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record for key %d", ErrSchema, key)
	}
	if _, ok := b.classes.ClassID(rec.ClassName()); !ok {
		return fmt.Errorf("%w: class %q is not declared", ErrSchema, rec.ClassName())
	}
	b.records = append(b.records, builtRecord{key: key, rec: rec})
	return nil
}

// WithEnvelope заставляет Bytes обернуть файл в конверт AKSF с непрозрачным блоком
func (b *Builder) WithEnvelope(opaque []byte) *Builder {
	b.enveloped = true
	b.envelope = opaque
	return b
}

// Bytes сериализует модуль
func (b *Builder) Bytes() ([]byte, error) {
	w := bytestream.NewWriter()
	w.WriteBytes([]byte(Signature))
	ptrPos := w.Len()
	w.WriteInt32(0)

	offsets := make([]int32, len(b.records))
	for i, br := range b.records {
		offsets[i] = int32(w.Len())
		if err := writeRecord(w, br.rec, b); err != nil {
			return nil, fmt.Errorf("record %d: %w", br.key, err)
		}
	}

	if err := w.PutInt32At(ptrPos, int32(w.Len())); err != nil {
		return nil, err
	}
	w.WriteInt32(int32(len(b.records) * indexEntrySize))
	for i, br := range b.records {
		w.WriteInt32(br.key)
		w.WriteInt32(offsets[i])
	}

	classes := b.classes.All()
	w.WriteInt32(int32(len(classes)))
	for _, cls := range classes {
		if err := cls.writeDefinition(w); err != nil {
			return nil, err
		}
	}

	if !b.enveloped {
		return w.Bytes(), nil
	}
	env := bytestream.NewWriter()
	if err := env.WriteUTF(EnvelopeTag); err != nil {
		return nil, err
	}
	env.WriteInt16(0)
	env.WriteInt32(int32(len(b.envelope)))
	env.WriteBytes(b.envelope)
	env.WriteBytes(w.Bytes())
	return env.Bytes(), nil
}
