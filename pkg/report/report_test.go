package report_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/fastsketch/pkg/report"
)

type countingObserver struct {
	mu                        sync.Mutex
	skipped, failed, compared int
}

func (o *countingObserver) EntriesCompared(n int64) {
	o.mu.Lock()
	o.compared += int(n)
	o.mu.Unlock()
}

func (o *countingObserver) EntrySkipped() {
	o.mu.Lock()
	o.skipped++
	o.mu.Unlock()
}

func (o *countingObserver) EntryFailed() {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
}

func TestDiagnostics_CountsConcurrently(t *testing.T) {
	t.Parallel()

	diag := report.NewDiagnostics(nil, 5)
	obs := &countingObserver{}
	diag.SetObserver(obs)

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			diag.AddLoaded(2)
			diag.AddCompared(3)
			diag.AddRows(1)
			diag.Skip("a.sig", errors.New("no compatible sketch"))
			diag.Fail("b.sig", errors.New("missing"))
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(20), diag.Loaded())
	assert.Equal(t, int64(30), diag.Compared())
	assert.Equal(t, int64(10), diag.Rows())
	assert.Equal(t, int64(10), diag.Skipped())
	assert.Equal(t, int64(10), diag.Failed())
	assert.Len(t, diag.Entries(), 5)
	assert.Equal(t, 10, obs.skipped)
	assert.Equal(t, 10, obs.failed)
	assert.Equal(t, 30, obs.compared)
}

func TestDiagnostics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var diag *report.Diagnostics

	diag.Skip("x", nil)
	diag.Fail("x", nil)
	diag.AddRows(1)

	assert.Zero(t, diag.Rows())
	assert.Nil(t, diag.Entries())
}

func TestWriteTableAndYAML(t *testing.T) {
	t.Parallel()

	diag := report.NewDiagnostics(nil, 0)
	diag.AddLoaded(1234)
	diag.Skip("q.sig", errors.New("no compatible sketch"))

	summary := diag.Summary("manysearch", 1500*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, summary))
	assert.Contains(t, buf.String(), "1,234")
	assert.Contains(t, buf.String(), "q.sig")

	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, report.WriteYAML(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded report.Summary
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "manysearch", decoded.Operation)
	assert.Equal(t, int64(1), decoded.Skipped)
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, report.KindSkipped, decoded.Entries[0].Kind)
}
