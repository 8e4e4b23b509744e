package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Метки формата для метрик декодирования
const (
	FormatD2O = "d2o"
	FormatDLM = "dlm"
)

// Источники байт карты
const (
	SourceLRU     = "lru"
	SourceArchive = "archive"
	SourceFile    = "file"
)

// CodecMetrics - метрики декодирования D2O и DLM.
//
// Метрики:
// * assets_decode_total{format,outcome} - counter
// * assets_decode_duration_seconds{format} - histogram
// * assets_modules_loaded - gauge
// * assets_map_loads_total{source} - counter
type CodecMetrics struct {
	decodes        *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	modulesLoaded  prometheus.Gauge
	mapLoads       *prometheus.CounterVec
}

// NewCodecMetrics создаёт метрики и регистрирует их в reg.
// nil означает дефолтный регистр prometheus.
func NewCodecMetrics(reg prometheus.Registerer) *CodecMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &CodecMetrics{
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assets",
			Name:      "decode_total",
			Help:      "Количество декодирований по формату и результату.",
		}, []string{"format", "outcome"}),
		decodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assets",
			Name:      "decode_duration_seconds",
			Help:      "Длительность декодирования.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"format"}),
		modulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assets",
			Name:      "modules_loaded",
			Help:      "Количество зарегистрированных D2O модулей.",
		}),
		mapLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assets",
			Name:      "map_loads_total",
			Help:      "Загрузки карт по источнику байт.",
		}, []string{"source"}),
	}

	reg.MustRegister(m.decodes, m.decodeDuration, m.modulesLoaded, m.mapLoads)
	return m
}

// ObserveDecode фиксирует одно декодирование
func (m *CodecMetrics) ObserveDecode(format string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.decodes.WithLabelValues(format, outcome).Inc()
	m.decodeDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}

// SetModulesLoaded обновляет число загруженных модулей
func (m *CodecMetrics) SetModulesLoaded(n int) {
	m.modulesLoaded.Set(float64(n))
}

// MapLoaded фиксирует источник, из которого пришли байты карты
func (m *CodecMetrics) MapLoaded(source string) {
	m.mapLoads.WithLabelValues(source).Inc()
}
