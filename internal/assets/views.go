package assets

import (
	"fmt"

	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/annel0/mmo-assets/internal/dlm"
)

// ClassView - схема класса D2O для JSON
type ClassView struct {
	ID        int32       `json:"id"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace,omitempty"`
	Fields    []FieldView `json:"fields"`
}

// FieldView - поле схемы, тип в виде "list<list<int32>>" или "record(3)"
type FieldView struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func newClassView(c *d2o.ClassDescriptor) ClassView {
	v := ClassView{
		ID:        c.ID,
		Name:      c.Name,
		Namespace: c.Namespace,
		Fields:    make([]FieldView, 0, len(c.Fields)),
	}
	for _, f := range c.Fields {
		v.Fields = append(v.Fields, FieldView{Name: f.Name, Type: f.Type.String()})
	}
	return v
}

// MapView - карта для JSON: заполненные ячейки с вычисленными признаками
type MapView struct {
	*dlm.Map
	Digest string      `json:"digest"`
	Layers []LayerView `json:"layers"`
	Cells  []CellView  `json:"cells"`
}

// LayerView - слой с типизированными элементами
type LayerView struct {
	LayerID int32           `json:"layer_id"`
	Cells   []LayerCellView `json:"cells"`
}

// LayerCellView - ячейка слоя
type LayerCellView struct {
	CellID   int16         `json:"cell_id"`
	Elements []ElementView `json:"elements"`
}

// ElementView добавляет к элементу дискриминатор типа
type ElementView struct {
	Type string      `json:"type"`
	Data dlm.Element `json:"data"`
}

// CellView - данные ячейки и производные признаки
type CellView struct {
	ID                     int   `json:"id"`
	Floor                  int   `json:"floor"`
	LosMov                 uint8 `json:"los_mov"`
	Speed                  int8  `json:"speed"`
	MapChangeData          uint8 `json:"map_change_data"`
	MoveZone               uint8 `json:"move_zone"`
	Arrow                  int   `json:"arrow"`
	Mov                    bool  `json:"mov"`
	Los                    bool  `json:"los"`
	NonWalkableDuringFight bool  `json:"non_walkable_during_fight"`
	Red                    bool  `json:"red"`
	Blue                   bool  `json:"blue"`
	FarmCell               bool  `json:"farm_cell"`
	Visible                bool  `json:"visible"`
	NonWalkableDuringRP    bool  `json:"non_walkable_during_rp"`
	Walkable               bool  `json:"walkable"`
	WalkableInFight        bool  `json:"walkable_in_fight"`
}

func elementTypeName(t dlm.ElementType) string {
	switch t {
	case dlm.GraphicalElementType:
		return "graphical"
	case dlm.SoundElementType:
		return "sound"
	default:
		return fmt.Sprintf("element#%d", t)
	}
}

func newCellView(c *dlm.CellData) CellView {
	return CellView{
		ID:                     c.ID,
		Floor:                  c.Floor(),
		LosMov:                 c.LosMov,
		Speed:                  c.Speed,
		MapChangeData:          c.MapChangeData,
		MoveZone:               c.MoveZone,
		Arrow:                  c.Arrow(),
		Mov:                    c.Mov(),
		Los:                    c.Los(),
		NonWalkableDuringFight: c.NonWalkableDuringFight(),
		Red:                    c.Red(),
		Blue:                   c.Blue(),
		FarmCell:               c.FarmCell(),
		Visible:                c.Visible(),
		NonWalkableDuringRP:    c.NonWalkableDuringRP(),
		Walkable:               c.Walkable(),
		WalkableInFight:        c.WalkableInFight(),
	}
}

func newMapView(m *dlm.Map, digest string) MapView {
	v := MapView{
		Map:    m,
		Digest: digest,
		Layers: make([]LayerView, 0, len(m.Layers)),
		Cells:  make([]CellView, 0, dlm.CellCount),
	}
	for _, l := range m.Layers {
		lv := LayerView{LayerID: l.LayerID, Cells: make([]LayerCellView, 0, len(l.Cells))}
		for _, c := range l.Cells {
			cv := LayerCellView{CellID: c.CellID, Elements: make([]ElementView, 0, len(c.Elements))}
			for _, e := range c.Elements {
				cv.Elements = append(cv.Elements, ElementView{Type: elementTypeName(e.Type()), Data: e})
			}
			lv.Cells = append(lv.Cells, cv)
		}
		v.Layers = append(v.Layers, lv)
	}
	for i := range m.Cells {
		if m.Cells[i].Present() {
			v.Cells = append(v.Cells, newCellView(&m.Cells[i]))
		}
	}
	return v
}
