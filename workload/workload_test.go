package workload

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/timer"
)

const schedulerTest = `init: main
programs:
  main:
    - fork worker x3
    - waitx
    - waitx
    - waitx
  worker: |
    loop 2
    spin 20
    sleep 1
    end
    exit 7
`

func TestDecode(t *testing.T) {
	w, err := Decode([]byte(schedulerTest))
	require.NoError(t, err)
	assert.Equal(t, "main", w.Init)
	assert.Equal(t, []string{"main", "worker"}, w.Names())
	worker := w.Programs["worker"]
	require.Len(t, worker.Ops, 2)
	assert.Equal(t, 9, worker.Ops[0].Line)
	assert.Equal(t, 11, worker.Ops[0].Body[1].Line)
	assert.Equal(t, 13, worker.Ops[1].Line)
	assert.Equal(t, 4, w.Programs["main"].Ops[0].Line)
}

func TestDecode_Errors(t *testing.T) {
	testCases := []struct {
		description string
		document    string
		expectErr   error
		expectText  string
	}{
		{description: "no programs", document: "init: main\n", expectText: "programs were not defined"},
		{description: "missing init", document: "init: main\nprograms:\n  other:\n    - spin 1\n", expectErr: ErrUnknownProgram},
		{description: "default init name", document: "programs:\n  main:\n    - spin 1\n", expectErr: ErrUnknownProgram},
		{description: "unknown fork", document: "init: main\nprograms:\n  main:\n    - fork ghost\n", expectErr: ErrUnknownProgram, expectText: "main:4:"},
		{description: "init exits", document: "init: main\nprograms:\n  main:\n    - spin 1\n    - exit 0\n", expectText: "main:5: init cannot exit"},
		{description: "syntax", document: "init: main\nprograms:\n  main:\n    - spin 1\n    - spin\n", expectErr: ErrSyntax, expectText: "main:5:"},
		{description: "not a sequence", document: "init: main\nprograms:\n  main:\n    op: spin\n", expectText: "main:"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := Decode([]byte(testCase.document))
			require.Error(t, err)
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
			}
			if testCase.expectText != "" {
				assert.Contains(t, err.Error(), testCase.expectText)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	location := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(location, []byte(schedulerTest), 0o644))
	w, err := Load(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, "main", w.Init)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompile_Run(t *testing.T) {
	w, err := Decode([]byte(schedulerTest))
	require.NoError(t, err)

	var mu sync.Mutex
	var results []Result
	done := make(chan struct{})
	init, err := w.Compile(func() { close(done) }, WithResults(func(result Result) {
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	}))
	require.NoError(t, err)

	device, err := timer.NewDevice(timer.Config{Mode: timer.ModeCycle, CyclesPerTick: 10}, 1)
	require.NoError(t, err)
	config := kernel.DefaultConfig()
	config.Procs = 8
	k, err := kernel.New(config, kernel.WithDevice(device))
	require.NoError(t, err)
	require.NoError(t, k.Boot(context.Background(), init))

	select {
	case <-done:
	case <-k.Halted():
		t.Fatalf("machine halted: %v", k.Err())
	case <-time.After(20 * time.Second):
		t.Fatalf("workload timed out: %v", k.Dump())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, k.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 3)
	seen := map[int]bool{}
	for _, result := range results {
		assert.Equal(t, 1, result.Parent)
		assert.Equal(t, 7, result.Status)
		assert.InDelta(t, 4, float64(result.RTime), 1)
		seen[result.PID] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true}, seen)
}

func TestCompile_Invalid(t *testing.T) {
	w := &Workload{Init: "main", Programs: map[string]*Program{}}
	_, err := w.Compile(nil)
	assert.ErrorIs(t, err, ErrUnknownProgram)
}
