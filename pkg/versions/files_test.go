package versions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/record-versions/pkg/files"
)

func TestFilesTable_CompressedRoundTrip(t *testing.T) {
	store := files.NewLocalStore(t.TempDir())
	svc, repo, rows := newTestService(t, WithFiles(store))
	ctx := context.Background()

	const logo = "files/logo.svgz"
	require.NoError(t, files.WriteContent(ctx, store, logo, "<svg>v1</svg>"))

	h := mustHandle(t, svc, DefaultFilesTable, 5)
	row := map[string]any{"path": logo, "extension": "svgz", "name": "logo.svgz"}
	v1 := snapshot(t, h, rows, row)
	assert.Equal(t, "logo.svgz", v1.Description)

	stored, err := repo.Get(ctx, DefaultFilesTable, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "<svg>v1</svg>", stored.Payload["content"])

	require.NoError(t, files.WriteContent(ctx, store, logo, "<svg>v2</svg>"))
	snapshot(t, h, rows, map[string]any{"path": logo, "extension": "svgz", "name": "logo.svgz"})

	data, err := h.Restore(ctx, 1, nil)
	require.NoError(t, err)
	assert.NotContains(t, data, "content")

	got, err := files.ReadContent(ctx, store, logo)
	require.NoError(t, err)
	assert.Equal(t, "<svg>v1</svg>", got)

	raw, err := store.Read(ctx, logo)
	require.NoError(t, err)
	assert.True(t, files.IsCompressed(logo))
	assert.NotEqual(t, "<svg>v1</svg>", string(raw))
}

func TestFilesTable_NonEditableContentNotCaptured(t *testing.T) {
	store := files.NewLocalStore(t.TempDir())
	svc, repo, rows := newTestService(t, WithFiles(store))
	ctx := context.Background()

	h := mustHandle(t, svc, DefaultFilesTable, 6)
	snapshot(t, h, rows, map[string]any{"path": "files/photo.jpg", "extension": "jpg", "name": "photo.jpg"})

	stored, err := repo.Get(ctx, DefaultFilesTable, 6, 1)
	require.NoError(t, err)
	assert.NotContains(t, stored.Payload, "content")
}

func TestFilesTable_MissingFileFailsCreate(t *testing.T) {
	svc, _, rows := newTestService(t, WithFiles(files.NewLocalStore(t.TempDir())))

	require.NoError(t, rows.Put(DefaultFilesTable, 7, map[string]any{
		"tstamp": int64(1), "path": "files/missing.css", "extension": "css",
	}))
	_, err := mustHandle(t, svc, DefaultFilesTable, 7).Create(context.Background(), testAdmin)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "reading file content", se.Op)
}
