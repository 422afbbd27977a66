// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// transitNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	transitNamespace = "transit"

	modeLabelName      = "mode"
	statusLabelName    = "status"
	directionLabelName = "direction"
	opLabelName        = "op"
	methodLabelName    = "method"

	SuccessLabel = "success"
	FailLabel    = "fail"

	EncodeLabel = "encode"
	DecodeLabel = "decode"

	InLabel  = "in"
	OutLabel = "out"
)

var (
	// buckets 为耗时直方图的桶划分，单位为毫秒。
	// [0.01 0.02 0.04 ... 655.36]
	buckets = prometheus.ExponentialBuckets(0.01, 2, 17)

	// sizeBuckets 为数据大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 12)

	EncodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: transitNamespace,
			Name:      "encode_total",
			Help:      "count of encode operations",
		}, []string{modeLabelName, statusLabelName})

	DecodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: transitNamespace,
			Name:      "decode_total",
			Help:      "count of decode operations",
		}, []string{modeLabelName, statusLabelName})

	PayloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: transitNamespace,
			Name:      "payload_bytes",
			Help:      "size of encoded or decoded payloads",
			Buckets:   sizeBuckets,
		}, []string{modeLabelName, directionLabelName})

	CodecLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: transitNamespace,
			Name:      "codec_latency_ms",
			Help:      "latency of encode and decode in milliseconds",
			Buckets:   buckets,
		}, []string{modeLabelName, opLabelName})

	TransportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: transitNamespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "count of transport requests",
		}, []string{methodLabelName, statusLabelName})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册编解码、传输与异步日志的全部指标，只有第一次调用生效。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(EncodeTotal)
		r.MustRegister(DecodeTotal)
		r.MustRegister(PayloadBytes)
		r.MustRegister(CodecLatency)
		r.MustRegister(TransportRequestsTotal)
		r.MustRegister(loggingCollectors()...)
		metricRegisterer = r
	})
}

// ObserveCodec 记录一次编解码的结果、耗时与数据大小。
func ObserveCodec(mode, op string, size int, start time.Time, err error) {
	status := SuccessLabel
	if err != nil {
		status = FailLabel
	}
	switch op {
	case EncodeLabel:
		EncodeTotal.WithLabelValues(mode, status).Inc()
	case DecodeLabel:
		DecodeTotal.WithLabelValues(mode, status).Inc()
	}
	CodecLatency.WithLabelValues(mode, op).Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err == nil {
		direction := OutLabel
		if op == DecodeLabel {
			direction = InLabel
		}
		PayloadBytes.WithLabelValues(mode, direction).Observe(float64(size))
	}
}
