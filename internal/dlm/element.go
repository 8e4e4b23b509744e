package dlm

import (
	"fmt"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

// ElementType - однобайтовый дискриминатор элемента ячейки
type ElementType int8

const (
	GraphicalElementType ElementType = 2
	SoundElementType     ElementType = 33
)

// Element - элемент ячейки слоя. Конкретный тип выбирается по дискриминатору.
type Element interface {
	Type() ElementType
	Decode(r *bytestream.Reader, version int8) error
	Encode(w *bytestream.Writer, version int8) error
}

var elementRegistry = map[ElementType]func() Element{
	GraphicalElementType: func() Element { return &GraphicalElement{} },
	SoundElementType:     func() Element { return &SoundElement{} },
}

// RegisterElement добавляет конструктор элемента в регистр
func RegisterElement(t ElementType, ctor func() Element) {
	elementRegistry[t] = ctor
}

// NewElement возвращает пустой элемент для дискриминатора
func NewElement(t ElementType) (Element, bool) {
	ctor, ok := elementRegistry[t]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Color - RGB тройка знаковых байт
type Color struct {
	R int8 `json:"r"`
	G int8 `json:"g"`
	B int8 `json:"b"`
}

func (c *Color) decode(d *reader, what string) {
	c.R = d.int8(what)
	c.G = d.int8(what)
	c.B = d.int8(what)
}

func (c Color) encode(w *bytestream.Writer) {
	w.WriteInt8(c.R)
	w.WriteInt8(c.G)
	w.WriteInt8(c.B)
}

// GraphicalElement - графический элемент ячейки.
// До версии 5 смещение хранится байтами, начиная с 5 - в пикселях (int16).
type GraphicalElement struct {
	ElementID  uint32 `json:"element_id"`
	Hue        Color  `json:"hue"`
	Shadow     Color  `json:"shadow"`
	OffsetX    int16  `json:"offset_x"`
	OffsetY    int16  `json:"offset_y"`
	Altitude   int8   `json:"altitude"`
	Identifier uint32 `json:"identifier"`
}

func (g *GraphicalElement) Type() ElementType { return GraphicalElementType }

func (g *GraphicalElement) Decode(r *bytestream.Reader, version int8) error {
	d := newReader(r)
	g.ElementID = d.uint32("graphical element id")
	g.Hue.decode(d, "graphical element hue")
	g.Shadow.decode(d, "graphical element shadow")
	if version < versionPixelShift {
		g.OffsetX = int16(d.int8("graphical element offset"))
		g.OffsetY = int16(d.int8("graphical element offset"))
	} else {
		g.OffsetX = d.int16("graphical element pixel offset")
		g.OffsetY = d.int16("graphical element pixel offset")
	}
	g.Altitude = d.int8("graphical element altitude")
	g.Identifier = d.uint32("graphical element identifier")
	return d.err
}

func (g *GraphicalElement) Encode(w *bytestream.Writer, version int8) error {
	w.WriteUint32(g.ElementID)
	g.Hue.encode(w)
	g.Shadow.encode(w)
	if version < versionPixelShift {
		if g.OffsetX < -128 || g.OffsetX > 127 || g.OffsetY < -128 || g.OffsetY > 127 {
			return fmt.Errorf("offset (%d,%d) does not fit a byte in map version %d", g.OffsetX, g.OffsetY, version)
		}
		w.WriteInt8(int8(g.OffsetX))
		w.WriteInt8(int8(g.OffsetY))
	} else {
		w.WriteInt16(g.OffsetX)
		w.WriteInt16(g.OffsetY)
	}
	w.WriteInt8(g.Altitude)
	w.WriteUint32(g.Identifier)
	return nil
}

// SoundElement - источник звука в ячейке
type SoundElement struct {
	SoundID              int32 `json:"sound_id"`
	BaseVolume           int16 `json:"base_volume"`
	FullVolumeDistance   int32 `json:"full_volume_distance"`
	NullVolumeDistance   int32 `json:"null_volume_distance"`
	MinDelayBetweenLoops int16 `json:"min_delay_between_loops"`
	MaxDelayBetweenLoops int16 `json:"max_delay_between_loops"`
}

func (s *SoundElement) Type() ElementType { return SoundElementType }

func (s *SoundElement) Decode(r *bytestream.Reader, _ int8) error {
	d := newReader(r)
	s.SoundID = d.int32("sound id")
	s.BaseVolume = d.int16("sound base volume")
	s.FullVolumeDistance = d.int32("sound full volume distance")
	s.NullVolumeDistance = d.int32("sound null volume distance")
	s.MinDelayBetweenLoops = d.int16("sound min delay")
	s.MaxDelayBetweenLoops = d.int16("sound max delay")
	return d.err
}

func (s *SoundElement) Encode(w *bytestream.Writer, _ int8) error {
	w.WriteInt32(s.SoundID)
	w.WriteInt16(s.BaseVolume)
	w.WriteInt32(s.FullVolumeDistance)
	w.WriteInt32(s.NullVolumeDistance)
	w.WriteInt16(s.MinDelayBetweenLoops)
	w.WriteInt16(s.MaxDelayBetweenLoops)
	return nil
}
