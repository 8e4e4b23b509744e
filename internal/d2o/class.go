package d2o

import (
	"fmt"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

// classSchema - результат первого прохода разбора: имя, пространство имён и поля.
// Модуль привязывается отдельным шагом bind.
type classSchema struct {
	id        int32
	name      string
	namespace string
	fields    []*FieldDescriptor
}

// ClassDescriptor - неизменяемая схема записи внутри модуля
type ClassDescriptor struct {
	ID        int32
	Module    string
	Name      string
	Namespace string
	Fields    []*FieldDescriptor
}

// NewClassDescriptor создаёт дескриптор программно (для Builder и тестов)
func NewClassDescriptor(id int32, module, name, namespace string, fields ...*FieldDescriptor) *ClassDescriptor {
	return classSchema{id: id, name: name, namespace: namespace, fields: fields}.bind(module)
}

func (s classSchema) bind(module string) *ClassDescriptor {
	fields := make([]*FieldDescriptor, len(s.fields))
	copy(fields, s.fields)
	return &ClassDescriptor{
		ID:        s.id,
		Module:    module,
		Name:      s.name,
		Namespace: s.namespace,
		Fields:    fields,
	}
}

// QualifiedName возвращает namespace.Name
func (c *ClassDescriptor) QualifiedName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// Decode создаёт экземпляр через фабрику и заполняет поля в объявленном порядке
func (c *ClassDescriptor) Decode(r *bytestream.Reader, res Resolver) (Record, error) {
	rec, err := res.NewRecord(c.Name)
	if err != nil {
		return nil, err
	}
	for _, f := range c.Fields {
		v, err := f.Decode(r, res)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		if err := rec.SetField(f.Name, v); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
	}
	return rec, nil
}

// Encode пишет поля экземпляра в объявленном порядке (без идентификатора класса)
func (c *ClassDescriptor) Encode(w *bytestream.Writer, rec Record, res Resolver) error {
	for _, f := range c.Fields {
		v, err := rec.Field(f.Name)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
		if err := f.Encode(w, v, res); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

func readClass(r *bytestream.Reader, module string) (classSchema, error) {
	var s classSchema
	pos := r.Position()
	id, err := r.ReadInt32()
	if err != nil {
		return s, formatErr(module, pos, err, "class id")
	}
	s.id = id
	if s.name, err = r.ReadUTF(); err != nil {
		return s, formatErr(module, r.Position(), err, "class %d name", id)
	}
	if s.namespace, err = r.ReadUTF(); err != nil {
		return s, formatErr(module, r.Position(), err, "class %s namespace", s.name)
	}
	countPos := r.Position()
	count, err := r.ReadInt32()
	if err != nil {
		return s, formatErr(module, countPos, err, "class %s field count", s.name)
	}
	if count < 0 {
		return s, formatErr(module, countPos, nil, "class %s: negative field count %d", s.name, count)
	}
	s.fields = make([]*FieldDescriptor, 0, count)
	for i := int32(0); i < count; i++ {
		f, err := readField(r, module)
		if err != nil {
			return s, fmt.Errorf("class %s: %w", s.name, err)
		}
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func (c *ClassDescriptor) writeDefinition(w *bytestream.Writer) error {
	w.WriteInt32(c.ID)
	if err := w.WriteUTF(c.Name); err != nil {
		return err
	}
	if err := w.WriteUTF(c.Namespace); err != nil {
		return err
	}
	w.WriteInt32(int32(len(c.Fields)))
	for _, f := range c.Fields {
		if err := f.writeDefinition(w); err != nil {
			return fmt.Errorf("class %s: %w", c.Name, err)
		}
	}
	return nil
}

// ClassTable - таблица классов модуля: id → дескриптор и имя → id
type ClassTable struct {
	byID   map[int32]*ClassDescriptor
	byName map[string]int32
	order  []int32
}

func newClassTable() *ClassTable {
	return &ClassTable{
		byID:   make(map[int32]*ClassDescriptor),
		byName: make(map[string]int32),
	}
}

func (t *ClassTable) add(c *ClassDescriptor) error {
	if _, exists := t.byID[c.ID]; exists {
		return fmt.Errorf("duplicate class id %d (%s)", c.ID, c.Name)
	}
	// записи ссылаются на класс по короткому имени
	if other, exists := t.byName[c.Name]; exists {
		return fmt.Errorf("duplicate class name %s (ids %d and %d)", c.Name, other, c.ID)
	}
	t.byID[c.ID] = c
	t.byName[c.Name] = c.ID
	t.order = append(t.order, c.ID)
	return nil
}

func (t *ClassTable) Class(id int32) (*ClassDescriptor, bool) {
	c, ok := t.byID[id]
	return c, ok
}

func (t *ClassTable) ClassID(name string) (int32, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Len возвращает число классов
func (t *ClassTable) Len() int {
	return len(t.byID)
}

// All возвращает классы в порядке объявления в файле
func (t *ClassTable) All() []*ClassDescriptor {
	out := make([]*ClassDescriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}
