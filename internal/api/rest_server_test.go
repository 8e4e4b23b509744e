package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/mmo-assets/internal/assets"
	"github.com/annel0/mmo-assets/internal/config"
	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moduleBytes(t *testing.T) []byte {
	t.Helper()
	b := d2o.NewBuilder("Spells")
	require.NoError(t, b.AddClass(d2o.NewClassDescriptor(1, "Spells", "Spell", "",
		d2o.NewField("id", d2o.Int32Type()),
		d2o.NewField("levels", d2o.ListOf(d2o.UInt32Type())),
	)))
	rec := d2o.NewDynamicRecord("Spell")
	require.NoError(t, rec.SetField("id", int32(17)))
	require.NoError(t, rec.SetField("levels", []interface{}{uint32(1), uint32(2)}))
	require.NoError(t, b.Add(17, rec))
	data, err := b.Bytes()
	require.NoError(t, err)
	return data
}

func mapBytes(t *testing.T) []byte {
	t.Helper()
	m := dlm.NewMap(8, 42)
	m.Cells[3] = dlm.CellData{ID: 3, RawFloor: 1, LosMov: dlm.BitMov}
	data, err := dlm.Encode(m)
	require.NoError(t, err)
	return data
}

func newTestServer(t *testing.T) *RestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "d2o/Spells.d2o", moduleBytes(t), 0o644))
	require.NoError(t, afero.WriteFile(fs, "d2o/Broken.d2o", []byte("D2O"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "maps/42.dlm", mapBytes(t), 0o644))
	require.NoError(t, afero.WriteFile(fs, "maps/43.dlm", []byte{dlm.Magic}, 0o644))

	svc, err := assets.NewService(assets.Options{
		Config: config.AssetsConfig{D2ODir: "d2o", MapsDir: "maps", MapCacheSize: 8, RenderTTL: time.Minute},
		FS:     fs,
	})
	require.NoError(t, err)
	_, err = svc.LoadModules(context.Background())
	require.Error(t, err, "Broken.d2o не разбирается")

	return NewRestServer(Config{Service: svc, Registry: prometheus.NewRegistry()})
}

func do(t *testing.T, rs *RestServer, method, path string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	rs.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var resp GenericResponse
	if path != "/metrics" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestHealthAndServerInfo(t *testing.T) {
	rs := newTestServer(t)

	w := httptest.NewRecorder()
	rs.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"modules":1`)

	w, resp := do(t, rs, http.MethodGet, "/api/server")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	info := resp.Data.(map[string]interface{})
	assert.Equal(t, Version, info["version"])
	assert.NotEmpty(t, info["uptime"])
}

func TestModuleRoutes(t *testing.T) {
	rs := newTestServer(t)

	w, resp := do(t, rs, http.MethodGet, "/api/modules")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = do(t, rs, http.MethodGet, "/api/modules/Spells/classes")
	assert.Equal(t, http.StatusOK, w.Code)
	classes := resp.Data.([]interface{})
	require.Len(t, classes, 1)
	fields := classes[0].(map[string]interface{})["fields"].([]interface{})
	assert.Equal(t, "list<uint32>", fields[1].(map[string]interface{})["type"])

	w, resp = do(t, rs, http.MethodGet, "/api/modules/Spells/objects/17")
	assert.Equal(t, http.StatusOK, w.Code)
	obj := resp.Data.(map[string]interface{})
	assert.Equal(t, "Spell", obj["_class"])
	assert.Equal(t, []interface{}{float64(1), float64(2)}, obj["levels"])

	w, resp = do(t, rs, http.MethodGet, "/api/modules/Spells/objects")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = do(t, rs, http.MethodGet, "/api/modules/Spells/objects/18")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/modules/Spells/objects/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/modules/Monsters/classes")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/modules/Monsters/objects")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReloadRoute(t *testing.T) {
	rs := newTestServer(t)

	w, resp := do(t, rs, http.MethodPost, "/api/modules/Spells/reload")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = do(t, rs, http.MethodPost, "/api/modules/Broken/reload")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, rs, http.MethodPost, "/api/modules/Missing/reload")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapRoutes(t *testing.T) {
	rs := newTestServer(t)

	w, resp := do(t, rs, http.MethodGet, "/api/maps/42")
	assert.Equal(t, http.StatusOK, w.Code)
	m := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(42), m["id"])
	assert.Len(t, m["cells"], 1)

	w, resp = do(t, rs, http.MethodGet, "/api/maps/42/cells/3")
	assert.Equal(t, http.StatusOK, w.Code)
	cell := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(10), cell["floor"])
	assert.Equal(t, true, cell["walkable"])

	w, _ = do(t, rs, http.MethodGet, "/api/maps/42/cells/560")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/maps/42/cells/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/maps/43")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/maps/44")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/maps/-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// архив не настроен
	w, _ = do(t, rs, http.MethodPost, "/api/maps/import")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpointServed(t *testing.T) {
	rs := newTestServer(t)
	do(t, rs, http.MethodGet, "/api/modules")

	w, _ := do(t, rs, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/modules")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(assets.ErrMapNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(dlm.ErrFormat))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(d2o.ErrSchema))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
