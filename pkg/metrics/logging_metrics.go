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

import "github.com/prometheus/client_golang/prometheus"

const logSubsystem = "log"

// 异步写日志的指标，由 pkg/log 的 async core 更新，随 Register 一起注册。
var (
	LoggingPendingWriteLength = newLogGauge("pending_writes", "log entries waiting in the async queue")
	LoggingPendingWriteBytes  = newLogGauge("pending_bytes", "bytes waiting in the async queue")

	LoggingTruncatedWrites     = newLogCounter("truncated_writes_total", "log entries truncated to the per-entry byte limit")
	LoggingTruncatedWriteBytes = newLogCounter("truncated_bytes_total", "bytes cut off by truncation")
	LoggingDroppedWrites       = newLogCounter("dropped_writes_total", "log entries dropped because the queue stayed full or the core stopped")
	LoggingIOFailure           = newLogCounter("io_failures_total", "failed writes to the underlying sink")
)

func newLogGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: transitNamespace,
		Subsystem: logSubsystem,
		Name:      name,
		Help:      help,
	})
}

func newLogCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: transitNamespace,
		Subsystem: logSubsystem,
		Name:      name,
		Help:      help,
	})
}

func loggingCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		LoggingPendingWriteLength,
		LoggingPendingWriteBytes,
		LoggingTruncatedWrites,
		LoggingTruncatedWriteBytes,
		LoggingDroppedWrites,
		LoggingIOFailure,
	}
}
