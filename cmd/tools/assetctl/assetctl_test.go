package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeEncryptedMap(t *testing.T, dir string) string {
	t.Helper()
	m := dlm.NewMap(9, 1001)
	m.Encrypted = true
	m.EncryptionVersion = 1
	m.Cells[0] = dlm.CellData{ID: 0, RawFloor: 0, LosMov: dlm.BitMov}
	m.Cells[1] = dlm.CellData{ID: 1, RawFloor: 0, LosMov: dlm.BitMov | dlm.BitFarmCell}
	data, err := dlm.Encode(m)
	require.NoError(t, err)
	path := filepath.Join(dir, "1001.dlm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDLMInfo(t *testing.T) {
	path := writeEncryptedMap(t, t.TempDir())

	out, err := execute(t, "dlm", "info", path)
	require.NoError(t, err)

	var s mapSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, uint32(1001), s.ID)
	assert.True(t, s.Encrypted)
	assert.Equal(t, 2, s.PresentCells)
	assert.Equal(t, 1, s.WalkableCells)
	assert.Len(t, s.Digest, 64)
}

func TestDLMDecrypt(t *testing.T) {
	dir := t.TempDir()
	in := writeEncryptedMap(t, dir)
	outPath := filepath.Join(dir, "plain.dlm")

	_, err := execute(t, "dlm", "decrypt", in, outPath)
	require.NoError(t, err)

	plain, err := os.ReadFile(outPath)
	require.NoError(t, err)
	h, err := dlm.ReadHeader(plain)
	require.NoError(t, err)
	assert.False(t, h.Encrypted)

	m, err := dlm.Decode(plain)
	require.NoError(t, err)
	assert.True(t, m.Cells[1].FarmCell())
}

func TestD2OCommands(t *testing.T) {
	b := d2o.NewBuilder("Breeds")
	require.NoError(t, b.AddClass(d2o.NewClassDescriptor(3, "Breeds", "Breed", "com.game.breeds",
		d2o.NewField("id", d2o.Int32Type()),
		d2o.NewField("shortName", d2o.I18NType()),
	)))
	for _, id := range []int32{1, 2} {
		rec := d2o.NewDynamicRecord("Breed")
		require.NoError(t, rec.SetField("id", id))
		require.NoError(t, rec.SetField("shortName", d2o.I18NID(100+id)))
		require.NoError(t, b.Add(id, rec))
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "Breeds.d2o")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "d2o", "classes", path)
	require.NoError(t, err)
	assert.Contains(t, out, "module Breeds: 2 records")
	assert.Contains(t, out, "#3 com.game.breeds.Breed")

	out, err = execute(t, "d2o", "dump", path, "--key", "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_class":"Breed","id":2,"shortName":102}`, out)

	out, err = execute(t, "d2o", "dump", path)
	require.NoError(t, err)
	var all []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 2)

	_, err = execute(t, "d2o", "dump", path, "--key", "9")
	assert.Error(t, err)
}

func TestReadMapFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	data, err := dlm.Encode(dlm.NewMap(9, 7))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "maps/7.dlm", data, 0o644))
	require.NoError(t, afero.WriteFile(fs, "maps/8.dlm", []byte{1, 2, 3}, 0o644))

	m, raw, err := readMap(fs, "maps/7.dlm")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), m.ID)
	assert.Equal(t, data, raw)

	_, _, err = readMap(fs, "maps/8.dlm")
	assert.True(t, errors.Is(err, dlm.ErrFormat))
	assert.Contains(t, err.Error(), "maps/8.dlm")

	_, _, err = readMap(fs, "maps/9.dlm")
	assert.Error(t, err)
}
