package d2o

import "fmt"

// Тестовые записи в стиле сгенерированного кода

type fooRecord struct {
	ID int32
}

func (*fooRecord) ClassName() string { return "Foo" }
func (*fooRecord) Module() string    { return "Items" }

func (f *fooRecord) SetField(name string, v interface{}) error {
	switch name {
	case "id":
		x, ok := v.(int32)
		if !ok {
			return fmt.Errorf("id: unexpected %T", v)
		}
		f.ID = x
		return nil
	}
	return fmt.Errorf("Foo has no field %q", name)
}

func (f *fooRecord) Field(name string) (interface{}, error) {
	if name == "id" {
		return f.ID, nil
	}
	return nil, fmt.Errorf("Foo has no field %q", name)
}

type barRecord struct {
	Name string
}

func (*barRecord) ClassName() string { return "Bar" }
func (*barRecord) Module() string    { return "Items" }

func (b *barRecord) SetField(name string, v interface{}) error {
	if name != "name" {
		return fmt.Errorf("Bar has no field %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("name: unexpected %T", v)
	}
	b.Name = s
	return nil
}

func (b *barRecord) Field(name string) (interface{}, error) {
	if name == "name" {
		return b.Name, nil
	}
	return nil, fmt.Errorf("Bar has no field %q", name)
}

// unboundRecord объявлен в модуле, который никогда не регистрируется
type unboundRecord struct{ fooRecord }

func (*unboundRecord) Module() string { return "Missing" }

func fooClass() *ClassDescriptor {
	return NewClassDescriptor(1, "Items", "Foo", "com.game.items", NewField("id", Int32Type()))
}

func barClass() *ClassDescriptor {
	return NewClassDescriptor(2, "Items", "Bar", "com.game.items", NewField("name", StringType()))
}

func itemsFactory() *Factory {
	f := NewFactory()
	RegisterType(f, "Foo", func() *fooRecord { return &fooRecord{} })
	RegisterType(f, "Bar", func() *barRecord { return &barRecord{} })
	return f
}

// testResolver - минимальный Resolver для проверки полей вне контейнера
type testResolver struct {
	classes *ClassTable
	factory *Factory
}

func newTestResolver(classes ...*ClassDescriptor) *testResolver {
	t := &testResolver{classes: newClassTable(), factory: NewDynamicFactory()}
	for _, c := range classes {
		if err := t.classes.add(c); err != nil {
			panic(err)
		}
	}
	return t
}

func (t *testResolver) Module() string                          { return "test" }
func (t *testResolver) Class(id int32) (*ClassDescriptor, bool) { return t.classes.Class(id) }
func (t *testResolver) ClassID(name string) (int32, bool)       { return t.classes.ClassID(name) }
func (t *testResolver) NewRecord(name string) (Record, error)   { return t.factory.New(name) }
