package versions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_PreservesTypes(t *testing.T) {
	in := map[string]any{
		"id":        int64(3),
		"ratio":     0.5,
		"title":     "A",
		"teaser":    nil,
		"published": true,
		"singleSRC": testUUIDBytes(),
		"multiSRC":  []any{testUUIDBytes()},
	}

	data, err := EncodePayload(in)
	require.NoError(t, err)
	out, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestDecodePayload_NotAMapping(t *testing.T) {
	_, err := DecodePayload([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = DecodePayload([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodePayload_Nil(t *testing.T) {
	data, err := EncodePayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestClonePayload(t *testing.T) {
	in := map[string]any{"tags": []any{"a"}}
	out, err := ClonePayload(in)
	require.NoError(t, err)

	out["tags"].([]any)[0] = "b"
	assert.Equal(t, "a", in["tags"].([]any)[0])
}

func TestMemoryRepository_Audit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, repo.Insert(ctx, &Record{
			Table: newsTable, RecordID: 1, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UserID: int64(i % 2), EditURL: "contao?id=1",
		}))
	}

	all, err := repo.CountAudit(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	uid := int64(0)
	own, err := repo.CountAudit(ctx, AuditFilter{UserID: &uid})
	require.NoError(t, err)
	assert.Equal(t, 1, own)

	recs, err := repo.ListAudit(ctx, AuditFilter{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Version)

	n, err := repo.PurgeBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	latest, err := repo.LatestVersion(ctx, newsTable, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}
