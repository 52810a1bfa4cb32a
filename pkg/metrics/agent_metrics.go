package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "host_collector"

// NewCollectionDurationSeconds 创建「采集阶段耗时分布」指标
// 指标类型：Histogram，单位秒，0.01s ~ 5.12s 指数分桶
func (f *MetricFactory) NewCollectionDurationSeconds() prometheus.Histogram {
	return promauto.With(f.reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collection_duration_seconds",
		Help:      "Duration of the check execution phase of one cycle",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
}

// NewEmitDurationSeconds 创建「上报耗时分布」指标
// 标签说明：emitter: 上报通道名称（forwarder / log）
func (f *MetricFactory) NewEmitDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "emit_duration_seconds",
		Help:      "Duration of one emitter invocation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"emitter"})
}

// NewCheckErrorsTotal 创建「检查失败总数」指标
// 标签说明：
//
//	group: 检查分组（system / legacy / event / resource / metrics / checksd）
//	check: 检查名称
func (f *MetricFactory) NewCheckErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "check_errors_total",
		Help:      "Total check invocation failures",
	}, []string{"group", "check"})
}

func (f *MetricFactory) NewEmitterErrorsTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emitter_errors_total",
		Help:      "Total emitter failures",
	}, []string{"emitter"})
}

func (f *MetricFactory) NewRunsTotal() prometheus.Counter {
	return promauto.With(f.reg).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total collection cycles started",
	})
}

func (f *MetricFactory) NewPayloadMetrics() prometheus.Gauge {
	return promauto.With(f.reg).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "payload_metrics",
		Help:      "Number of metric tuples in the last emitted payload",
	})
}

// CollectorMetrics Agent 自身监控指标集合
type CollectorMetrics struct {
	CollectionDuration prometheus.Histogram
	EmitDuration       *prometheus.HistogramVec
	CheckErrors        *prometheus.CounterVec
	EmitterErrors      *prometheus.CounterVec
	Runs               prometheus.Counter
	PayloadMetrics     prometheus.Gauge
}

// NewCollectorMetrics 一次性创建并注册全部自身指标
func NewCollectorMetrics(f *MetricFactory) *CollectorMetrics {
	return &CollectorMetrics{
		CollectionDuration: f.NewCollectionDurationSeconds(),
		EmitDuration:       f.NewEmitDurationSeconds(),
		CheckErrors:        f.NewCheckErrorsTotal(),
		EmitterErrors:      f.NewEmitterErrorsTotal(),
		Runs:               f.NewRunsTotal(),
		PayloadMetrics:     f.NewPayloadMetrics(),
	}
}
