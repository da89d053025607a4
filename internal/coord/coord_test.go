package coord

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logai/internal/catalog"
	"logai/internal/resultset"
	"logai/pkg/cache"
	"logai/pkg/metrics"
)

func TestFingerprintIsOrderIndependent(t *testing.T) {
	w := Window{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)}

	a := Fingerprint([]string{"hub-ca-auth", "hub-us-auth"}, "boom", w)
	b := Fingerprint([]string{"hub-us-auth", "hub-ca-auth"}, "boom", w)
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersOnPattern(t *testing.T) {
	w := Window{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)}

	a := Fingerprint([]string{"hub-ca-auth"}, "boom", w)
	b := Fingerprint([]string{"hub-ca-auth"}, "bang", w)
	assert.NotEqual(t, a, b)
}

func newMemCache(t *testing.T) cache.Cache {
	t.Helper()
	return cache.NewMemoryCache(&cache.Options{MaxEntries: 100, MaxMemoryBytes: 1 << 20})
}

func TestResultCacheGetMissThenPutThenHit(t *testing.T) {
	rc := NewResultCache(newMemCache(t), cache.BackendMemory, time.Minute, 1<<20, nil, metrics.InitMetrics("logai_test", "coord_hit"))
	ctx := context.Background()

	_, ok := rc.Get(ctx, "fp1")
	assert.False(t, ok)

	rs := &resultset.ResultSet{
		Matches:  []resultset.Match{{Service: "svc", FilePath: "a.log", Line: 1, Content: "x"}},
		Metadata: resultset.Metadata{TotalMatches: 1},
	}
	rc.Put(ctx, "fp1", rs)

	got, ok := rc.Get(ctx, "fp1")
	require.True(t, ok)
	assert.Equal(t, rs.Matches, got.Matches)
}

func TestResultCacheSkipsOversizedEntries(t *testing.T) {
	rc := NewResultCache(newMemCache(t), cache.BackendMemory, time.Minute, 100, nil, metrics.InitMetrics("logai_test", "coord_oversize"))
	ctx := context.Background()

	matches := make([]resultset.Match, 50)
	for i := range matches {
		matches[i] = resultset.Match{Service: "svc", FilePath: "a.log", Line: i, Content: "a reasonably long line of content to blow the byte cap"}
	}
	rs := &resultset.ResultSet{Matches: matches}
	rc.Put(ctx, "fp-big", rs)

	_, ok := rc.Get(ctx, "fp-big")
	assert.False(t, ok)
}

func TestResultCacheInvalidatesOnCatalogChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: svc\n    path_template: /x\n"), 0o644))

	cat, err := catalog.Load(path)
	require.NoError(t, err)

	rc := NewResultCache(newMemCache(t), cache.BackendMemory, time.Minute, 1<<20, cat, metrics.InitMetrics("logai_test", "coord_invalidate"))
	ctx := context.Background()

	rs := &resultset.ResultSet{Metadata: resultset.Metadata{TotalMatches: 1}}
	rc.Put(ctx, "fp1", rs)

	_, ok := rc.Get(ctx, "fp1")
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: svc\n    path_template: /y\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok = rc.Get(ctx, "fp1")
	assert.False(t, ok)
}
