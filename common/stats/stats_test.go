package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecisionChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if stat.precision != time.Millisecond {
		t.Fatal("Default precision should be millis.")
	}

	statp := stat.Precision(time.Second).(*defaultStatsReceiver)
	if stat.precision != time.Millisecond {
		t.Fatal("Default precision should still be millis.")
	}
	if statp.precision != time.Second {
		t.Fatal("New stat precision should be seconds.")
	}
}

func TestScopeChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should be empty.")
	}

	statp := stat.Scope("a/b", "c").(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should still be empty.")
	}
	if len(statp.scope) != 2 || statp.scope[0] != "a_SLASH_b" || statp.scope[1] != "c" {
		t.Fatal("Invalid scope value: ", statp.scope)
	}
	if statp.scopedName("d") != "a_SLASH_b/c/d" {
		t.Fatal("Invalid scope name: " + statp.scopedName("d"))
	}
}

func TestRender(t *testing.T) {
	Time = NewTestTime(time.Unix(0, 0), 5*time.Millisecond)
	defer func() { Time = DefaultStatsTime() }()

	stat := DefaultStatsReceiver().Scope("jobrunner")
	stat.Counter(JobCompletedCounter).Inc(2)
	stat.Gauge(ManagerActiveJobsGauge).Update(3)
	stat.Latency(JobRunLatency_ms).Time().Stop()

	var rendered map[string]interface{}
	require.NoError(t, json.Unmarshal(stat.Render(false), &rendered))
	assert.EqualValues(t, 2, rendered["jobrunner/jobCompletedCounter"])
	assert.EqualValues(t, 3, rendered["jobrunner/activeJobsGauge"])
	assert.EqualValues(t, 1, rendered["jobrunner/jobRunLatency_ms.count"])
	assert.EqualValues(t, 5, rendered["jobrunner/jobRunLatency_ms.max"])
}

func TestNilStatsReceiver(t *testing.T) {
	stat := NilStatsReceiver().Scope("x")
	stat.Counter("c").Inc(1)
	stat.Latency("l").Time().Stop()
	assert.Equal(t, int64(0), stat.Counter("c").Count())
	assert.Empty(t, stat.Render(true))
}

func TestLatencyTimersAreIndependent(t *testing.T) {
	Time = NewTestTime(time.Unix(0, 0), 5*time.Millisecond)
	defer func() { Time = DefaultStatsTime() }()

	stat := DefaultStatsReceiver()
	first := stat.Latency("l").Time()
	second := stat.Latency("l").Time()
	first.Stop()
	second.Stop()

	var rendered map[string]interface{}
	require.NoError(t, json.Unmarshal(stat.Render(false), &rendered))
	assert.EqualValues(t, 2, rendered["l.count"])
	assert.EqualValues(t, 5, rendered["l.max"])
}
