package dlm

import (
	"math"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

const (
	// CellCount - фиксированное число ячеек карты, не зависит от версии и слоёв
	CellCount = 560
	// NoFloor - значение пола, означающее отсутствие данных ячейки
	NoFloor int8 = math.MinInt8
)

// Биты байта LosMov
const (
	BitMov                    uint8 = 1 << iota // проходима
	BitLos                                      // пропускает линию видимости
	BitNonWalkableDuringFight                   // непроходима в бою
	BitRed                                      // красная зона размещения
	BitBlue                                     // синяя зона размещения
	BitFarmCell                                 // ячейка ресурса
	BitVisible
	BitNonWalkableDuringRP
)

// Биты стрелок смены карты
const (
	ArrowTop    = 1 << iota
	ArrowBottom
	ArrowRight
	ArrowLeft
)

// CellData - данные рельефа и проходимости одной ячейки
type CellData struct {
	ID            int
	RawFloor      int8
	LosMov        uint8
	Speed         int8
	MapChangeData uint8
	MoveZone      uint8
	RawArrow      int8
}

// Present сообщает, есть ли у ячейки данные
func (c *CellData) Present() bool {
	return c.RawFloor != NoFloor
}

// Floor возвращает высоту пола
func (c *CellData) Floor() int {
	return int(c.RawFloor) * 10
}

// Arrow возвращает четыре бита стрелок
func (c *CellData) Arrow() int {
	return int(c.RawArrow) & 0xF
}

func (c *CellData) bit(mask uint8) bool {
	return c.LosMov&mask != 0
}

func (c *CellData) Mov() bool                    { return c.bit(BitMov) }
func (c *CellData) Los() bool                    { return c.bit(BitLos) }
func (c *CellData) NonWalkableDuringFight() bool { return c.bit(BitNonWalkableDuringFight) }
func (c *CellData) Red() bool                    { return c.bit(BitRed) }
func (c *CellData) Blue() bool                   { return c.bit(BitBlue) }
func (c *CellData) FarmCell() bool               { return c.bit(BitFarmCell) }
func (c *CellData) Visible() bool                { return c.bit(BitVisible) }
func (c *CellData) NonWalkableDuringRP() bool    { return c.bit(BitNonWalkableDuringRP) }

// Walkable - проходима вне боя и не является ячейкой ресурса
func (c *CellData) Walkable() bool {
	return c.Mov() && !c.FarmCell()
}

// WalkableInFight - проходима в бою
func (c *CellData) WalkableInFight() bool {
	return c.Mov() && !c.NonWalkableDuringFight() && !c.FarmCell()
}

func (c *CellData) decode(d *reader, version int8) {
	id := c.ID
	*c = CellData{ID: id}
	c.RawFloor = d.int8("cell floor")
	if c.RawFloor == NoFloor {
		return
	}
	c.LosMov = d.uint8("cell losmov")
	c.Speed = d.int8("cell speed")
	c.MapChangeData = d.uint8("cell map change data")
	if version > 5 {
		c.MoveZone = d.uint8("cell move zone")
	}
	if version > 7 {
		c.RawArrow = d.int8("cell arrow")
	}
}

func (c *CellData) encode(w *bytestream.Writer, version int8) {
	w.WriteInt8(c.RawFloor)
	if c.RawFloor == NoFloor {
		return
	}
	w.WriteUint8(c.LosMov)
	w.WriteInt8(c.Speed)
	w.WriteUint8(c.MapChangeData)
	if version > 5 {
		w.WriteUint8(c.MoveZone)
	}
	if version > 7 {
		w.WriteInt8(c.RawArrow)
	}
}
