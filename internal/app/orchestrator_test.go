package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvdai/suriwatch/internal/domain"
	"github.com/nvdai/suriwatch/internal/ports"
)

type fakeCapturer struct {
	content string
	err     error
	calls   int
}

func (c *fakeCapturer) Capture(ctx context.Context, outPath string, duration time.Duration) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(outPath, []byte(c.content), 0644)
}

type fakeClassifier struct {
	verdicts []domain.TrafficClass
	err      error
	calls    int
}

func (c *fakeClassifier) Classify(ctx context.Context, rows []domain.FlowRecord) ([]domain.TrafficClass, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.verdicts, nil
}

func fixedLoader(records []domain.FlowRecord) ports.FlowLoader {
	return func(path string) ([]domain.FlowRecord, error) {
		return records, nil
	}
}

func newLoopFixture(t *testing.T, capturer ports.FlowCapturer, loader ports.FlowLoader, classifier ports.Classifier) (*CaptureLoop, *Blacklist, string) {
	t.Helper()
	store := newCaptureFixture(t)
	blPath := filepath.Join(t.TempDir(), "blacklist.txt")
	bl := NewBlacklist(blPath, nil)
	loop := NewCaptureLoop(store, capturer, loader, classifier, bl, CaptureLoopConfig{Duration: time.Second})
	return loop, bl, blPath
}

func TestCycleSkipsEmptyCapture(t *testing.T) {
	classifier := &fakeClassifier{}
	loop, _, _ := newLoopFixture(t, &fakeCapturer{content: ""}, fixedLoader(nil), classifier)

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 0, classifier.calls)
}

func TestCycleBlacklistsMaliciousSources(t *testing.T) {
	records := []domain.FlowRecord{
		{SrcIP: "10.0.0.5", Features: make([]float64, len(domain.FeatureColumns))},
		{SrcIP: "10.0.0.6", Features: make([]float64, len(domain.FeatureColumns))},
		{SrcIP: "10.0.0.7", Features: make([]float64, len(domain.FeatureColumns))},
	}
	classifier := &fakeClassifier{verdicts: []domain.TrafficClass{
		domain.ClassBenign,
		domain.ClassDDoS,
		domain.ClassPortScan,
	}}
	loop, bl, blPath := newLoopFixture(t, &fakeCapturer{content: captureCSV}, fixedLoader(records), classifier)

	require.NoError(t, loop.Cycle(context.Background()))

	assert.False(t, bl.Contains("10.0.0.5"))
	assert.True(t, bl.Contains("10.0.0.6"))
	assert.True(t, bl.Contains("10.0.0.7"))

	data, err := os.ReadFile(blPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.6")
	assert.Contains(t, string(data), "10.0.0.7")
	assert.NotContains(t, string(data), "10.0.0.5")
}

func TestCycleCaptureOnlySkipsClassification(t *testing.T) {
	classifier := &fakeClassifier{}
	store := newCaptureFixture(t)
	bl := NewBlacklist(filepath.Join(t.TempDir(), "blacklist.txt"), nil)
	loop := NewCaptureLoop(store, &fakeCapturer{content: captureCSV}, fixedLoader(nil), classifier, bl,
		CaptureLoopConfig{Duration: time.Second, CaptureOnly: true})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 0, classifier.calls)
}

func TestCycleRuntimeOverridesCaptureOnly(t *testing.T) {
	classifier := &fakeClassifier{verdicts: []domain.TrafficClass{domain.ClassBenign}}
	loop, _, _ := newLoopFixture(t, &fakeCapturer{content: captureCSV},
		fixedLoader([]domain.FlowRecord{{SrcIP: "10.0.0.5"}}), classifier)

	loop.SetRuntime(NewRuntimeConfig(Tunables{
		MaxAge:      DefaultMaxAge,
		CaptureOnly: true,
		FallbackIP:  "10.81.50.100",
	}))

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, 0, classifier.calls)
}

func TestCycleWrapsCaptureError(t *testing.T) {
	classifier := &fakeClassifier{}
	loop, _, _ := newLoopFixture(t, &fakeCapturer{err: errors.New("interface down")}, fixedLoader(nil), classifier)

	err := loop.Cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture")
	assert.Equal(t, 0, classifier.calls)
}

func TestCycleWrapsClassifierError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("model unavailable")}
	loop, bl, _ := newLoopFixture(t, &fakeCapturer{content: captureCSV},
		fixedLoader([]domain.FlowRecord{{SrcIP: "10.0.0.5"}}), classifier)

	err := loop.Cycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, bl.Count())
}

func TestRunSurvivesFailingCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	capturer := &fakeCapturer{err: errors.New("interface down")}
	classifier := &fakeClassifier{}
	loop, _, _ := newLoopFixture(t, capturer, fixedLoader(nil), classifier)

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// Let a few failing cycles pass, then stop.
	require.Eventually(t, func() bool { return capturer.calls >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, capturer.calls, 3)
}
