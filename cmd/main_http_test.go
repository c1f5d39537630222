package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.started = true
}

func (f *fakeCron) Stop() context.Context {
	f.stopped = true
	return context.Background()
}

type fakeWorker struct {
	started bool
	stopped bool
}

func (f *fakeWorker) Start() { f.started = true }
func (f *fakeWorker) Stop()  { f.stopped = true }

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	listenErr    error
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0"},
	}
}

func TestRunWithComponents_StartsAndStopsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	w := &fakeWorker{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testConfig(), scheduler, cronEngine, w, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	assert.True(t, cronEngine.started)
	assert.True(t, cronEngine.stopped)
	assert.True(t, w.started)
	assert.True(t, w.stopped)
}

func TestRunWithComponents_ScheduleError(t *testing.T) {
	scheduler := &fakeScheduler{err: errors.New("bad cron")}
	cronEngine := &fakeCron{}
	w := &fakeWorker{}

	err := runWithComponents(context.Background(), testConfig(), scheduler, cronEngine, w, newFakeHTTP())
	require.Error(t, err)
	assert.False(t, cronEngine.started)
	assert.False(t, w.started)
}

func TestRunWithComponents_ListenError(t *testing.T) {
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")
	w := &fakeWorker{}

	err := runWithComponents(context.Background(), testConfig(), &fakeScheduler{}, &fakeCron{}, w, httpSrv)
	require.EqualError(t, err, "address in use")
	assert.True(t, w.stopped)
}

func TestRenderDefaults(t *testing.T) {
	opts := renderDefaults(config.RenderConfig{Width: 1080, Height: 1920, FPS: 30, CRF: 20, Vignette: true, MusicVolume: 0.2, NarrationVolume: 1.3})
	assert.Equal(t, 1080, opts.Width)
	assert.True(t, opts.Vignette)
	assert.False(t, opts.DarkGrade)
	assert.InDelta(t, 0.2, opts.MusicVolume, 1e-9)
	assert.InDelta(t, 1.3, opts.NarrationVolume, 1e-9)
}
