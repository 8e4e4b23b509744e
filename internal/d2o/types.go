package d2o

import "fmt"

// TypeTag - целочисленный тег типа поля в схеме D2O.
// Положительные значения означают вложенную запись (идентификатор класса).
type TypeTag int32

const (
	TagInt    TypeTag = -1
	TagBool   TypeTag = -2
	TagString TypeTag = -3
	TagDouble TypeTag = -4
	TagI18N   TypeTag = -5
	TagUInt   TypeTag = -6
	TagVector TypeTag = -99
)

// NullClassID - зарезервированный идентификатор класса для отсутствующей вложенной записи
const NullClassID int32 = -1431655766

// I18NID - идентификатор строки в таблице переводов
type I18NID int32

// Kind - вариант объединения FieldType
type Kind uint8

const (
	KindInt32 Kind = iota
	KindUInt32
	KindBool
	KindDouble
	KindI18N
	KindString
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindUInt32:
		return "uint32"
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	case KindI18N:
		return "i18n"
	case KindString:
		return "string"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// FieldType описывает тип поля. Списки рекурсивны: List(List(Int32)) и т.д.
// Name хранит имя внутреннего типа из цепочки вектора (например "Vector.<int>"),
// чтобы повторная запись воспроизводила файл побайтно.
type FieldType struct {
	Kind Kind
	Tag  TypeTag
	Name string
	Elem *FieldType
}

// Конструкторы листовых типов
func Int32Type() *FieldType  { return &FieldType{Kind: KindInt32, Tag: TagInt} }
func UInt32Type() *FieldType { return &FieldType{Kind: KindUInt32, Tag: TagUInt} }
func BoolType() *FieldType   { return &FieldType{Kind: KindBool, Tag: TagBool} }
func DoubleType() *FieldType { return &FieldType{Kind: KindDouble, Tag: TagDouble} }
func I18NType() *FieldType   { return &FieldType{Kind: KindI18N, Tag: TagI18N} }
func StringType() *FieldType { return &FieldType{Kind: KindString, Tag: TagString} }

// RecordType - вложенная запись с объявленным классом classID (> 0)
func RecordType(classID int32) *FieldType {
	return &FieldType{Kind: KindRecord, Tag: TypeTag(classID)}
}

// ListOf оборачивает elem в список. Пустое имя элемента заменяется каноническим.
func ListOf(elem *FieldType) *FieldType {
	e := *elem
	if e.Name == "" {
		e.Name = e.canonicalName()
	}
	return &FieldType{Kind: KindList, Tag: TagVector, Elem: &e}
}

func (t *FieldType) canonicalName() string {
	switch t.Kind {
	case KindInt32, KindI18N:
		return "int"
	case KindUInt32:
		return "uint"
	case KindBool:
		return "Boolean"
	case KindDouble:
		return "Number"
	case KindString:
		return "String"
	case KindRecord:
		return "Object"
	case KindList:
		return "Vector.<" + t.Elem.Name + ">"
	}
	return ""
}

func (t *FieldType) String() string {
	if t.Kind == KindList {
		return "list<" + t.Elem.String() + ">"
	}
	if t.Kind == KindRecord {
		return fmt.Sprintf("record(%d)", t.Tag)
	}
	return t.Kind.String()
}

// leafType строит листовой тип по тегу; TagVector здесь недопустим
func leafType(tag TypeTag) (*FieldType, bool) {
	switch tag {
	case TagInt:
		return Int32Type(), true
	case TagUInt:
		return UInt32Type(), true
	case TagBool:
		return BoolType(), true
	case TagDouble:
		return DoubleType(), true
	case TagI18N:
		return I18NType(), true
	case TagString:
		return StringType(), true
	}
	if tag > 0 {
		return RecordType(int32(tag)), true
	}
	return nil, false
}
