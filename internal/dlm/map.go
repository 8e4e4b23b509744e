package dlm

import (
	"fmt"
	"math"

	"github.com/annel0/mmo-assets/internal/bytestream"
)

// Magic - первый байт любого файла карты
const Magic byte = 77

// Версии, начиная с которых в теле появляются новые поля
const (
	versionColor      = 3
	versionZoom       = 4
	versionPixelShift = 5
	versionMoveZone   = 6
	versionEncryption = 7
	versionArrow      = 8
)

// Map - декодированная карта.
// Списки стрелок и флаг новой системы перемещения вычисляются при декодировании и при кодировании не пишутся.
type Map struct {
	Version           int8   `json:"version"`
	ID                uint32 `json:"id"`
	Encrypted         bool   `json:"encrypted"`
	EncryptionVersion int8   `json:"encryption_version"`

	RelativeID            uint32 `json:"relative_id"`
	MapType               int8   `json:"map_type"`
	SubareaID             int32  `json:"subarea_id"`
	TopNeighbourID        int32  `json:"top_neighbour_id"`
	BottomNeighbourID     int32  `json:"bottom_neighbour_id"`
	LeftNeighbourID       int32  `json:"left_neighbour_id"`
	RightNeighbourID      int32  `json:"right_neighbour_id"`
	ShadowBonusOnEntities int32  `json:"shadow_bonus_on_entities"`

	BackgroundColor Color   `json:"background_color"`
	ZoomScale       float64 `json:"zoom_scale"`
	ZoomOffsetX     int16   `json:"zoom_offset_x"`
	ZoomOffsetY     int16   `json:"zoom_offset_y"`

	UseLowPassFilter bool  `json:"use_low_pass_filter"`
	UseReverb        bool  `json:"use_reverb"`
	PresetID         int32 `json:"preset_id"`

	BackgroundFixtures []Fixture `json:"background_fixtures"`
	ForegroundFixtures []Fixture `json:"foreground_fixtures"`

	Reserved  int32    `json:"-"`
	GroundCRC int32    `json:"ground_crc"`
	Layers    []*Layer `json:"layers"`

	Cells [CellCount]CellData `json:"-"`

	TopArrowCells          []int `json:"top_arrow_cells"`
	BottomArrowCells       []int `json:"bottom_arrow_cells"`
	RightArrowCells        []int `json:"right_arrow_cells"`
	LeftArrowCells         []int `json:"left_arrow_cells"`
	UsingNewMovementSystem bool  `json:"using_new_movement_system"`
}

// NewMap создаёт пустую карту: все ячейки без данных, масштаб 1, пресет звука отсутствует
func NewMap(version int8, id uint32) *Map {
	m := &Map{
		Version:   version,
		ID:        id,
		ZoomScale: 1,
		PresetID:  -1,
	}
	for i := range m.Cells {
		m.Cells[i] = CellData{ID: i, RawFloor: NoFloor}
	}
	return m
}

// Cell возвращает данные ячейки по номеру
func (m *Map) Cell(id int) (*CellData, bool) {
	if id < 0 || id >= CellCount {
		return nil, false
	}
	return &m.Cells[id], true
}

// Header - заголовок карты, читаемый без декодирования тела
type Header struct {
	Version   int8
	ID        uint32
	Encrypted bool
}

// ReadHeader читает сигнатуру, версию, идентификатор и флаг шифрования
func ReadHeader(data []byte) (Header, error) {
	d := newReader(bytestream.NewReader(data))
	var h Header
	if err := readMagic(d); err != nil {
		return h, err
	}
	h.Version = d.int8("version")
	h.ID = d.uint32("map id")
	if h.Version >= versionEncryption {
		h.Encrypted = d.bool("encrypted flag")
	}
	return h, d.err
}

func readMagic(d *reader) error {
	magic := d.uint8("magic")
	if d.err != nil {
		return d.err
	}
	if magic != Magic {
		return formatErr(0, nil, "bad magic %d, expected %d", magic, Magic)
	}
	return nil
}

// Decode декодирует карту за один проход
func Decode(data []byte) (*Map, error) {
	d := newReader(bytestream.NewReader(data))
	if err := readMagic(d); err != nil {
		return nil, err
	}

	m := NewMap(d.int8("version"), d.uint32("map id"))
	if m.Version >= versionEncryption {
		m.Encrypted = d.bool("encrypted flag")
		m.EncryptionVersion = d.int8("encryption version")
		if m.Encrypted {
			pos := d.Position()
			n := d.int32("encrypted payload length")
			if d.err == nil && (n < 0 || int(n) > d.Remaining()) {
				return nil, formatErr(pos, nil, "encrypted payload length %d exceeds %d remaining bytes", n, d.Remaining())
			}
			payload := d.bytes(int(n), "encrypted payload")
			if d.err != nil {
				return nil, d.err
			}
			d = newReader(bytestream.NewReader(Decrypt(payload)))
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	m.decodeBody(d)
	if d.err != nil {
		return nil, fmt.Errorf("map %d: %w", m.ID, d.err)
	}
	return m, nil
}

func (m *Map) decodeBody(d *reader) {
	m.RelativeID = d.uint32("relative id")
	m.MapType = d.int8("map type")
	m.SubareaID = d.int32("subarea id")
	m.TopNeighbourID = d.int32("top neighbour")
	m.BottomNeighbourID = d.int32("bottom neighbour")
	m.LeftNeighbourID = d.int32("left neighbour")
	m.RightNeighbourID = d.int32("right neighbour")
	m.ShadowBonusOnEntities = d.int32("shadow bonus")

	if m.Version >= versionColor {
		m.BackgroundColor.decode(d, "background color")
	}
	if m.Version >= versionZoom {
		m.ZoomScale = float64(d.uint16("zoom scale")) / 100
		m.ZoomOffsetX = d.int16("zoom offset")
		m.ZoomOffsetY = d.int16("zoom offset")
		if m.ZoomScale < 1 {
			m.ZoomScale = 1
			m.ZoomOffsetX = 0
			m.ZoomOffsetY = 0
		}
	}

	m.UseLowPassFilter = d.bool("low pass filter")
	m.UseReverb = d.bool("reverb")
	if m.UseReverb {
		m.PresetID = d.int32("reverb preset")
	}

	m.BackgroundFixtures = decodeFixtures(d, "background fixture count")
	m.ForegroundFixtures = decodeFixtures(d, "foreground fixture count")

	m.Reserved = d.int32("reserved")
	m.GroundCRC = d.int32("ground crc")

	layers := d.uint8("layer count")
	for i := 0; i < int(layers) && d.err == nil; i++ {
		layer := &Layer{}
		layer.decode(d, m.Version)
		m.Layers = append(m.Layers, layer)
	}

	var baseline uint8
	seen := false
	for i := range m.Cells {
		if d.err != nil {
			return
		}
		cell := &m.Cells[i]
		cell.decode(d, m.Version)
		if d.err != nil || !cell.Present() {
			continue
		}
		if m.Version >= versionMoveZone {
			if !seen {
				baseline = cell.MoveZone
				seen = true
			} else if cell.MoveZone != baseline {
				m.UsingNewMovementSystem = true
			}
		}
		if m.Version >= versionArrow {
			m.collectArrows(cell)
		}
	}
}

func (m *Map) collectArrows(cell *CellData) {
	arrow := cell.Arrow()
	if arrow&ArrowTop != 0 {
		m.TopArrowCells = append(m.TopArrowCells, cell.ID)
	}
	if arrow&ArrowBottom != 0 {
		m.BottomArrowCells = append(m.BottomArrowCells, cell.ID)
	}
	if arrow&ArrowRight != 0 {
		m.RightArrowCells = append(m.RightArrowCells, cell.ID)
	}
	if arrow&ArrowLeft != 0 {
		m.LeftArrowCells = append(m.LeftArrowCells, cell.ID)
	}
}

func decodeFixtures(d *reader, what string) []Fixture {
	count := d.uint8(what)
	var out []Fixture
	for i := 0; i < int(count) && d.err == nil; i++ {
		var f Fixture
		f.decode(d)
		out = append(out, f)
	}
	return out
}

// Encode кодирует карту. Тело собирается в отдельный буфер и при необходимости шифруется.
func Encode(m *Map) ([]byte, error) {
	body := bytestream.NewWriter()
	if err := m.encodeBody(body); err != nil {
		return nil, fmt.Errorf("map %d: %w", m.ID, err)
	}

	w := bytestream.NewWriter()
	w.WriteUint8(Magic)
	w.WriteInt8(m.Version)
	w.WriteUint32(m.ID)
	if m.Version >= versionEncryption {
		w.WriteBool(m.Encrypted)
		w.WriteInt8(m.EncryptionVersion)
		if m.Encrypted {
			payload := Encrypt(body.Bytes())
			w.WriteInt32(int32(len(payload)))
			w.WriteBytes(payload)
			return w.Bytes(), nil
		}
	}
	w.WriteBytes(body.Bytes())
	return w.Bytes(), nil
}

func (m *Map) encodeBody(w *bytestream.Writer) error {
	w.WriteUint32(m.RelativeID)
	w.WriteInt8(m.MapType)
	w.WriteInt32(m.SubareaID)
	w.WriteInt32(m.TopNeighbourID)
	w.WriteInt32(m.BottomNeighbourID)
	w.WriteInt32(m.LeftNeighbourID)
	w.WriteInt32(m.RightNeighbourID)
	w.WriteInt32(m.ShadowBonusOnEntities)

	if m.Version >= versionColor {
		m.BackgroundColor.encode(w)
	}
	if m.Version >= versionZoom {
		zoom := math.Round(m.ZoomScale * 100)
		if zoom < 0 || zoom > math.MaxUint16 {
			return fmt.Errorf("zoom scale %v out of range", m.ZoomScale)
		}
		w.WriteUint16(uint16(zoom))
		w.WriteInt16(m.ZoomOffsetX)
		w.WriteInt16(m.ZoomOffsetY)
	}

	w.WriteBool(m.UseLowPassFilter)
	w.WriteBool(m.UseReverb)
	if m.UseReverb {
		w.WriteInt32(m.PresetID)
	}

	if err := encodeFixtures(w, m.BackgroundFixtures, "background"); err != nil {
		return err
	}
	if err := encodeFixtures(w, m.ForegroundFixtures, "foreground"); err != nil {
		return err
	}

	w.WriteInt32(m.Reserved)
	w.WriteInt32(m.GroundCRC)

	if len(m.Layers) > math.MaxUint8 {
		return fmt.Errorf("too many layers: %d", len(m.Layers))
	}
	w.WriteUint8(uint8(len(m.Layers)))
	for _, layer := range m.Layers {
		if err := layer.encode(w, m.Version); err != nil {
			return err
		}
	}

	for i := range m.Cells {
		m.Cells[i].encode(w, m.Version)
	}
	return nil
}

func encodeFixtures(w *bytestream.Writer, fixtures []Fixture, kind string) error {
	if len(fixtures) > math.MaxUint8 {
		return fmt.Errorf("too many %s fixtures: %d", kind, len(fixtures))
	}
	w.WriteUint8(uint8(len(fixtures)))
	for i := range fixtures {
		fixtures[i].encode(w)
	}
	return nil
}
