package d2o

import (
	"sort"

	"github.com/annel0/mmo-assets/internal/bytestream"
	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/spf13/afero"
)

const (
	// Signature - сигнатура файла D2O
	Signature = "D2O"
	// EnvelopeTag - тег обёртки, за которой следует файл D2O
	EnvelopeTag = "AKSF"

	indexEntrySize = 8
)

// module - состояние одного зарегистрированного модуля
type module struct {
	name          string
	factory       *Factory
	reader        *bytestream.Reader
	contentOffset int
	dataStart     int
	index         map[int32]int
	keys          []int32
	count         int
	classes       *ClassTable
}

func (m *module) Module() string { return m.name }

func (m *module) Class(id int32) (*ClassDescriptor, bool) { return m.classes.Class(id) }

func (m *module) ClassID(name string) (int32, bool) { return m.classes.ClassID(name) }

func (m *module) NewRecord(className string) (Record, error) { return m.factory.New(className) }

// Container владеет таблицами классов, индексами и курсорами модулей D2O.
// Не потокобезопасен: параллельный доступ к одному контейнеру нужно сериализовать снаружи.
type Container struct {
	factory *Factory
	fs      afero.Fs
	modules map[string]*module
	log     *logging.Logger
}

// NewContainer создаёт контейнер. Если fs == nil, используется файловая система ОС.
func NewContainer(factory *Factory, fs afero.Fs) *Container {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Container{
		factory: factory,
		fs:      fs,
		modules: make(map[string]*module),
		log:     logging.GetComponentLogger("d2o"),
	}
}

// RegisterFile читает файл модуля и регистрирует его
func (c *Container) RegisterFile(name, path string) error {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return &Error{Kind: ErrResource, Module: name, Offset: -1, Msg: path, Err: err}
	}
	return c.Register(name, data)
}

// Register разбирает заголовок, индекс и таблицу классов модуля.
// Повторная регистрация заменяет прежнее состояние модуля.
func (c *Container) Register(name string, data []byte) error {
	m, err := parseModule(name, data, c.factory)
	if err != nil {
		c.log.Error("Ошибка регистрации модуля %s: %v", name, err)
		return err
	}
	c.modules[name] = m
	c.log.Debug("Модуль %s зарегистрирован: %d классов, %d записей, contentOffset=%d",
		name, m.classes.Len(), m.count, m.contentOffset)
	return nil
}

func parseModule(name string, data []byte, factory *Factory) (*module, error) {
	r := bytestream.NewReader(data)
	contentOffset, err := readHeader(r, name)
	if err != nil {
		return nil, err
	}

	pos := r.Position()
	ptr, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(name, pos, err, "index pointer")
	}
	m := &module{
		name:          name,
		factory:       factory,
		reader:        r,
		contentOffset: contentOffset,
		dataStart:     r.Position(),
		index:         make(map[int32]int),
		classes:       newClassTable(),
	}

	if err := r.Seek(contentOffset + int(ptr)); err != nil {
		return nil, formatErr(name, pos, err, "index pointer %d", ptr)
	}
	pos = r.Position()
	tableLen, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(name, pos, err, "index length")
	}
	if tableLen < 0 || tableLen%indexEntrySize != 0 || int(tableLen) > r.Remaining() {
		return nil, formatErr(name, pos, nil, "invalid index length %d", tableLen)
	}
	for consumed := int32(0); consumed < tableLen; consumed += indexEntrySize {
		key, _ := r.ReadInt32()
		p, _ := r.ReadInt32()
		if _, dup := m.index[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.index[key] = contentOffset + int(p)
		m.count++
	}

	pos = r.Position()
	classCount, err := r.ReadInt32()
	if err != nil {
		return nil, formatErr(name, pos, err, "class count")
	}
	if classCount < 0 {
		return nil, formatErr(name, pos, nil, "negative class count %d", classCount)
	}
	for i := int32(0); i < classCount; i++ {
		pos = r.Position()
		schema, err := readClass(r, name)
		if err != nil {
			return nil, err
		}
		if err := m.classes.add(schema.bind(name)); err != nil {
			return nil, formatErr(name, pos, err, "class table")
		}
	}
	return m, nil
}

// readHeader ищет сигнатуру D2O: либо в начале файла, либо после обёртки AKSF.
// Возвращает contentOffset - смещение сигнатуры.
func readHeader(r *bytestream.Reader, name string) (int, error) {
	magic, err := r.ReadBytes(len(Signature))
	if err == nil && string(magic) == Signature {
		return 0, nil
	}

	if err := r.Seek(0); err != nil {
		return 0, formatErr(name, 0, err, "header")
	}
	tag, err := r.ReadUTF()
	if err != nil || tag != EnvelopeTag {
		return 0, formatErr(name, 0, err, "missing %s signature", Signature)
	}
	// Два байта версии обёртки не используются
	if err := r.Skip(2); err != nil {
		return 0, formatErr(name, r.Position(), err, "envelope header")
	}
	pos := r.Position()
	skip, err := r.ReadInt32()
	if err != nil {
		return 0, formatErr(name, pos, err, "envelope block length")
	}
	if skip < 0 {
		return 0, formatErr(name, pos, nil, "negative envelope block length %d", skip)
	}
	if err := r.Skip(int(skip)); err != nil {
		return 0, formatErr(name, pos, err, "envelope block of %d bytes", skip)
	}
	contentOffset := r.Position()
	magic, err = r.ReadBytes(len(Signature))
	if err != nil || string(magic) != Signature {
		return 0, formatErr(name, contentOffset, err, "missing %s signature after envelope", Signature)
	}
	return contentOffset, nil
}

// IsLoaded сообщает, зарегистрирован ли модуль
func (c *Container) IsLoaded(name string) bool {
	_, ok := c.modules[name]
	return ok
}

// Modules возвращает отсортированный список зарегистрированных модулей
func (c *Container) Modules() []string {
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear освобождает состояние модуля
func (c *Container) Clear(name string) {
	delete(c.modules, name)
}

// GetClass возвращает дескриптор класса модуля по идентификатору
func (c *Container) GetClass(name string, id int32) (*ClassDescriptor, bool) {
	m, ok := c.modules[name]
	if !ok {
		return nil, false
	}
	return m.classes.Class(id)
}

// Classes возвращает классы модуля в порядке объявления
func (c *Container) Classes(name string) []*ClassDescriptor {
	m, ok := c.modules[name]
	if !ok {
		return nil
	}
	return m.classes.All()
}

// RecordCount возвращает число записей индекса модуля
func (c *Container) RecordCount(name string) int {
	m, ok := c.modules[name]
	if !ok {
		return 0
	}
	return m.count
}

// Keys возвращает ключи индекса в порядке файла
func (c *Container) Keys(name string) []int32 {
	m, ok := c.modules[name]
	if !ok {
		return nil
	}
	keys := make([]int32, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// ReadAll декодирует все записи модуля с начала сегмента данных.
// Для незагруженного модуля возвращает пустой результат без ошибки.
// clearReader освобождает состояние модуля после успешного чтения.
func (c *Container) ReadAll(name string, clearReader bool) ([]Record, error) {
	m, ok := c.modules[name]
	if !ok {
		c.log.Debug("Запрос записей незагруженного модуля %s", name)
		return nil, nil
	}
	if err := m.reader.Seek(m.dataStart); err != nil {
		return nil, formatErr(name, m.dataStart, err, "data segment")
	}
	records := make([]Record, 0, m.count)
	for i := 0; i < m.count; i++ {
		rec, err := m.readTopLevel()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if clearReader {
		c.Clear(name)
	}
	return records, nil
}

// ReadObject декодирует одну запись по ключу индекса.
// Незагруженный модуль или отсутствующий ключ дают (nil, false, nil).
func (c *Container) ReadObject(name string, key int32) (Record, bool, error) {
	m, ok := c.modules[name]
	if !ok {
		return nil, false, nil
	}
	off, ok := m.index[key]
	if !ok {
		return nil, false, nil
	}
	if err := m.reader.Seek(off); err != nil {
		return nil, false, formatErr(name, off, err, "record %d", key)
	}
	rec, err := m.readTopLevel()
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (m *module) readTopLevel() (Record, error) {
	pos := m.reader.Position()
	rec, err := readRecord(m.reader, m)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, schemaErr(m.name, pos, "null record in data segment")
	}
	return rec, nil
}

// GetObjects возвращает все записи типа T из модуля, объявленного типом T
func GetObjects[T ModuleRecord](c *Container, clearReader bool) ([]T, error) {
	var zero T
	records, err := c.ReadAll(zero.Module(), clearReader)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if t, ok := rec.(T); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetObject возвращает запись типа T по ключу
func GetObject[T ModuleRecord](c *Container, key int32) (T, bool, error) {
	var zero T
	rec, ok, err := c.ReadObject(zero.Module(), key)
	if err != nil || !ok {
		return zero, false, err
	}
	t, ok := rec.(T)
	if !ok {
		return zero, false, schemaErr(zero.Module(), -1, "record %d is %s, not the requested type", key, rec.ClassName())
	}
	return t, true, nil
}
