package d2o

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Record - экземпляр записи, заполняемый дескриптором класса поле за полем.
// Типы записей генерируются внешними инструментами; значения полей имеют Go-типы
// int32, uint32, bool, float64, I18NID, string, Record (nil для пустой ссылки)
// и []interface{} для списков.
type Record interface {
	// ClassName возвращает имя класса схемы, под которым тип зарегистрирован
	ClassName() string
	SetField(name string, value interface{}) error
	Field(name string) (interface{}, error)
}

// ModuleRecord - запись, знающая свой модуль. Требуется для типизированных запросов.
// Module должен работать на nil-указателе.
type ModuleRecord interface {
	Record
	Module() string
}

// Resolver даёт декодеру доступ к таблице классов модуля и фабрике записей
type Resolver interface {
	Module() string
	Class(id int32) (*ClassDescriptor, bool)
	ClassID(name string) (int32, bool)
	NewRecord(className string) (Record, error)
}

// Factory - реестр конструкторов записей по имени класса схемы
type Factory struct {
	mu       sync.RWMutex
	ctors    map[string]func() Record
	fallback func(className string) Record
}

// NewFactory создаёт пустой реестр
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]func() Record)}
}

// NewDynamicFactory создаёт реестр, который для незарегистрированных классов
// возвращает DynamicRecord. Используется инструментами, не знающими сгенерированных типов.
func NewDynamicFactory() *Factory {
	f := NewFactory()
	f.fallback = func(className string) Record { return NewDynamicRecord(className) }
	return f
}

// Register добавляет конструктор для имени класса
func (f *Factory) Register(className string, ctor func() Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[className] = ctor
}

// RegisterType - типизированная обёртка над Register
func RegisterType[T Record](f *Factory, className string, ctor func() T) {
	f.Register(className, func() Record { return ctor() })
}

// New возвращает пустой экземпляр для имени класса
func (f *Factory) New(className string) (Record, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[className]
	fallback := f.fallback
	f.mu.RUnlock()

	if ok {
		return ctor(), nil
	}
	if fallback != nil {
		return fallback(className), nil
	}
	return nil, fmt.Errorf("%w: no record type registered for class %q", ErrSchema, className)
}

// FieldValue - пара имя/значение в DynamicRecord
type FieldValue struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// DynamicRecord хранит поля в порядке схемы
type DynamicRecord struct {
	Class  string
	Fields []FieldValue
}

// NewDynamicRecord создаёт пустую запись класса
func NewDynamicRecord(className string) *DynamicRecord {
	return &DynamicRecord{Class: className}
}

func (d *DynamicRecord) ClassName() string {
	return d.Class
}

func (d *DynamicRecord) SetField(name string, value interface{}) error {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			d.Fields[i].Value = value
			return nil
		}
	}
	d.Fields = append(d.Fields, FieldValue{Name: name, Value: value})
	return nil
}

func (d *DynamicRecord) Field(name string) (interface{}, error) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no field %q", ErrSchema, d.Class, name)
}

// MarshalJSON выводит запись как объект {"_class": ..., поле: значение}
func (d *DynamicRecord) MarshalJSON() ([]byte, error) {
	buf := []byte(`{"_class":`)
	name, err := json.Marshal(d.Class)
	if err != nil {
		return nil, err
	}
	buf = append(buf, name...)
	for _, f := range d.Fields {
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf = append(buf, ',')
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
