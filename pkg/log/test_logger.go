package log

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// testingSyncer 把每条日志转发给 t.Logf。
type testingSyncer struct {
	t            zaptest.TestingT
	failOnOutput bool
}

func (w testingSyncer) Write(p []byte) (int, error) {
	w.t.Logf("%s", bytes.TrimSuffix(p, []byte("\n")))
	if w.failOnOutput {
		w.t.Fail()
	}
	return len(p), nil
}

func (testingSyncer) Sync() error { return nil }

// NewTestLogger 返回输出到 t 的 debug 级别 MLogger，便于在测试失败时查看日志。
func NewTestLogger(t zaptest.TestingT) *MLogger {
	lg, _, err := InitTestLogger(t, &Config{Level: "debug", Format: "console", DisableTimestamp: true})
	if err != nil {
		t.Errorf("init test logger: %v", err)
		return &MLogger{Logger: zap.NewNop()}
	}
	return &MLogger{Logger: lg}
}
