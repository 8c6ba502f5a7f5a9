package main

import (
	"fmt"
	"testing"

	"github.com/juju/loggo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

type fakeADC struct {
	cleanupErr error
	cleaned    bool
}

func (f *fakeADC) Init() error                        { return nil }
func (f *fakeADC) ReadPackVoltage() (float64, error) { return 0, nil }
func (f *fakeADC) ReadJackVoltage() (float64, error) { return 0, nil }
func (f *fakeADC) Cleanup() error {
	f.cleaned = true
	return f.cleanupErr
}

type fakePublisher struct {
	closeErr error
	closed   bool
}

func (f *fakePublisher) Publish(params.BatteryState) error { return nil }
func (f *fakePublisher) Close() error {
	f.closed = true
	return f.closeErr
}

func captureErrors(t *testing.T) *loggo.TestWriter {
	t.Helper()
	tw := &loggo.TestWriter{}
	require.NoError(t, loggo.RegisterWriter("cmd-test", tw))
	t.Cleanup(func() {
		loggo.RemoveWriter("cmd-test")
	})
	return tw
}

func errorMessages(tw *loggo.TestWriter) []string {
	var msgs []string
	for _, entry := range tw.Log() {
		if entry.Level == loggo.ERROR {
			msgs = append(msgs, entry.Message)
		}
	}
	return msgs
}

func TestShutdownLogsFailures(t *testing.T) {
	tw := captureErrors(t)

	reader := &fakeADC{cleanupErr: fmt.Errorf("unexport failed")}
	pub := &fakePublisher{closeErr: fmt.Errorf("broker gone")}
	shutdown(reader, pub)

	assert.True(t, pub.closed)
	assert.True(t, reader.cleaned)

	msgs := errorMessages(tw)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "closing publishers")
	assert.Contains(t, msgs[0], "broker gone")
	assert.Contains(t, msgs[1], "cleaning up ADC")
	assert.Contains(t, msgs[1], "unexport failed")
}

func TestShutdownClean(t *testing.T) {
	tw := captureErrors(t)

	reader := &fakeADC{}
	shutdown(reader, common.Multi(nil))

	assert.True(t, reader.cleaned)
	assert.Empty(t, errorMessages(tw))
}
