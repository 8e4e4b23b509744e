package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/mmo-assets/internal/assets"
	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/annel0/mmo-assets/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version - версия сервиса, отдаётся в /api/server
const Version = "v0.3.0"

// RestServer - REST API сервиса ассетов
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	assets  *assets.Service
	metrics *ServerMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string               // адрес вида ":8090"
	Service  *assets.Service      // сервис ассетов
	Registry *prometheus.Registry // регистр метрик; nil - дефолтный регистр prometheus
	Name     string               // имя сервиса для трассировки и метрик
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8090"
	}
	if config.Name == "" {
		config.Name = "assets_api"
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if config.Registry != nil {
		registerer, gatherer = config.Registry, config.Registry
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.Name))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware(config.Name, registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	rs := &RestServer{
		router:  router,
		assets:  config.Service,
		metrics: NewServerMetrics(),
		log:     logging.GetComponentLogger("api"),
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/server", rs.handleServerInfo)

	modules := api.Group("/modules")
	{
		modules.GET("", rs.handleModules)
		modules.GET("/:module/classes", rs.handleClasses)
		modules.GET("/:module/objects", rs.handleObjects)
		modules.GET("/:module/objects/:key", rs.handleObject)
		modules.POST("/:module/reload", rs.handleReload)
	}

	maps := api.Group("/maps")
	{
		maps.POST("/import", rs.handleImportMaps)
		maps.GET("/:id", rs.handleMap)
		maps.GET("/:id/cells/:cell", rs.handleCell)
	}
}

// Handler возвращает http.Handler (для тестов)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

// statusFor переводит ошибку кодека или сервиса в HTTP статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, assets.ErrMapNotFound), errors.Is(err, d2o.ErrResource):
		return http.StatusNotFound
	case errors.Is(err, assets.ErrCellOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, assets.ErrNoArchive):
		return http.StatusServiceUnavailable
	case errors.Is(err, d2o.ErrFormat), errors.Is(err, d2o.ErrSchema), errors.Is(err, dlm.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (rs *RestServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		rs.log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	fail(c, status, err.Error())
}

func mapID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный идентификатор карты: %s", c.Param("id")))
		return 0, false
	}
	return uint32(id), true
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"modules": len(rs.assets.Modules()),
	})
}

// handleServerInfo возвращает информацию о процессе
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	info := map[string]interface{}{
		"version": Version,
		"name":    "MMO Assets Service",
		"status":  "running",
		"uptime":  rs.metrics.GetUptime(),
		"memory":  rs.metrics.GetMemoryStats(),
		"modules": len(rs.assets.Modules()),
	}
	if cpu, err := rs.metrics.GetCPUUsage(); err == nil {
		info["cpu_percent"] = fmt.Sprintf("%.1f", cpu)
	}
	if rss, err := rs.metrics.GetRSS(); err == nil {
		info["rss_mb"] = fmt.Sprintf("%.1f", rss)
	}
	ok(c, "Информация о сервере", info)
}

func (rs *RestServer) handleModules(c *gin.Context) {
	ok(c, "Загруженные модули", rs.assets.Modules())
}

func (rs *RestServer) handleClasses(c *gin.Context) {
	module := c.Param("module")
	classes, found := rs.assets.Classes(module)
	if !found {
		fail(c, http.StatusNotFound, fmt.Sprintf("Модуль %s не загружен", module))
		return
	}
	ok(c, "Классы модуля", classes)
}

func (rs *RestServer) handleObjects(c *gin.Context) {
	module := c.Param("module")
	data, found, err := rs.assets.RenderObjects(c.Request.Context(), module)
	if err != nil {
		rs.fail(c, err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, fmt.Sprintf("Модуль %s не загружен", module))
		return
	}
	ok(c, "Записи модуля", json.RawMessage(data))
}

func (rs *RestServer) handleObject(c *gin.Context) {
	module := c.Param("module")
	key, err := strconv.ParseInt(c.Param("key"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный ключ: %s", c.Param("key")))
		return
	}
	data, found, err := rs.assets.RenderObject(c.Request.Context(), module, int32(key))
	if err != nil {
		rs.fail(c, err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, fmt.Sprintf("Запись %s/%d не найдена", module, key))
		return
	}
	ok(c, "Запись", json.RawMessage(data))
}

func (rs *RestServer) handleReload(c *gin.Context) {
	module := c.Param("module")
	if err := rs.assets.ReloadModule(c.Request.Context(), module); err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, fmt.Sprintf("Модуль %s перезагружен", module), nil)
}

func (rs *RestServer) handleImportMaps(c *gin.Context) {
	report, err := rs.assets.ImportMaps(c.Request.Context())
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, "Импорт завершён", report)
}

func (rs *RestServer) handleMap(c *gin.Context) {
	id, valid := mapID(c)
	if !valid {
		return
	}
	data, err := rs.assets.RenderMap(c.Request.Context(), id)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, "Карта", json.RawMessage(data))
}

func (rs *RestServer) handleCell(c *gin.Context) {
	id, valid := mapID(c)
	if !valid {
		return
	}
	cell, err := strconv.Atoi(c.Param("cell"))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Неверный номер ячейки: %s", c.Param("cell")))
		return
	}
	view, err := rs.assets.Cell(c.Request.Context(), id, cell)
	if err != nil {
		rs.fail(c, err)
		return
	}
	ok(c, "Ячейка", view)
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.log.Info("REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop дожидается завершения активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
