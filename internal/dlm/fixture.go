package dlm

import "github.com/annel0/mmo-assets/internal/bytestream"

// Fixture - декоративный спрайт фона или переднего плана
type Fixture struct {
	FixtureID       int32 `json:"fixture_id"`
	OffsetX         int16 `json:"offset_x"`
	OffsetY         int16 `json:"offset_y"`
	Rotation        int16 `json:"rotation"`
	XScale          int16 `json:"x_scale"`
	YScale          int16 `json:"y_scale"`
	RedMultiplier   int8  `json:"red_multiplier"`
	GreenMultiplier int8  `json:"green_multiplier"`
	BlueMultiplier  int8  `json:"blue_multiplier"`
	Alpha           uint8 `json:"alpha"`
}

func (f *Fixture) decode(d *reader) {
	f.FixtureID = d.int32("fixture id")
	f.OffsetX = d.int16("fixture offset")
	f.OffsetY = d.int16("fixture offset")
	f.Rotation = d.int16("fixture rotation")
	f.XScale = d.int16("fixture scale")
	f.YScale = d.int16("fixture scale")
	f.RedMultiplier = d.int8("fixture color")
	f.GreenMultiplier = d.int8("fixture color")
	f.BlueMultiplier = d.int8("fixture color")
	f.Alpha = d.uint8("fixture alpha")
}

func (f *Fixture) encode(w *bytestream.Writer) {
	w.WriteInt32(f.FixtureID)
	w.WriteInt16(f.OffsetX)
	w.WriteInt16(f.OffsetY)
	w.WriteInt16(f.Rotation)
	w.WriteInt16(f.XScale)
	w.WriteInt16(f.YScale)
	w.WriteInt8(f.RedMultiplier)
	w.WriteInt8(f.GreenMultiplier)
	w.WriteInt8(f.BlueMultiplier)
	w.WriteUint8(f.Alpha)
}
