package dlm

import (
	"fmt"
	"math"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

// Layer - декоративный слой карты
type Layer struct {
	LayerID int32   `json:"layer_id"`
	Cells   []*Cell `json:"cells"`
}

// Cell - ячейка слоя со списком элементов
type Cell struct {
	CellID   int16     `json:"cell_id"`
	Elements []Element `json:"elements"`
}

func (l *Layer) decode(d *reader, version int8) {
	l.LayerID = d.int32("layer id")
	count := d.count16("layer cell count")
	for i := 0; i < count && d.err == nil; i++ {
		cell := &Cell{}
		cell.decode(d, version)
		l.Cells = append(l.Cells, cell)
	}
}

func (l *Layer) encode(w *bytestream.Writer, version int8) error {
	if len(l.Cells) > math.MaxInt16 {
		return fmt.Errorf("layer %d has too many cells: %d", l.LayerID, len(l.Cells))
	}
	w.WriteInt32(l.LayerID)
	w.WriteInt16(int16(len(l.Cells)))
	for _, cell := range l.Cells {
		if err := cell.encode(w, version); err != nil {
			return fmt.Errorf("layer %d: %w", l.LayerID, err)
		}
	}
	return nil
}

func (c *Cell) decode(d *reader, version int8) {
	c.CellID = d.int16("layer cell id")
	count := d.count16("layer cell element count")
	for i := 0; i < count && d.err == nil; i++ {
		pos := d.Position()
		tag := ElementType(d.int8("element type"))
		if d.err != nil {
			return
		}
		el, ok := NewElement(tag)
		if !ok {
			d.err = formatErr(pos, nil, "unknown element type %d in cell %d", tag, c.CellID)
			return
		}
		if err := el.Decode(d.Reader, version); err != nil {
			d.err = err
			return
		}
		c.Elements = append(c.Elements, el)
	}
}

func (c *Cell) encode(w *bytestream.Writer, version int8) error {
	if len(c.Elements) > math.MaxInt16 {
		return fmt.Errorf("cell %d has too many elements: %d", c.CellID, len(c.Elements))
	}
	w.WriteInt16(c.CellID)
	w.WriteInt16(int16(len(c.Elements)))
	for _, el := range c.Elements {
		w.WriteInt8(int8(el.Type()))
		if err := el.Encode(w, version); err != nil {
			return fmt.Errorf("cell %d: %w", c.CellID, err)
		}
	}
	return nil
}
