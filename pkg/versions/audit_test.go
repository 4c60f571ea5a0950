package versions

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/record-versions/pkg/identity"
	"github.com/txn2/record-versions/pkg/rowstore"
)

const staleEditURL = "contao?do=news&act=edit&id=%d&rt=old&popup=1"

// seedEdits stores two versions of each record so every record contributes
// one audit row.
func seedEdits(t *testing.T, svc *Service, rows *rowstore.MemoryStore, table string, actor *identity.Actor, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, rows.Put(table, id, map[string]any{"tstamp": int64(100), "title": fmt.Sprintf("Item %d", id)}))
		h := mustHandle(t, svc, table, id)
		h.SetEditURL(staleEditURL)
		for range 2 {
			_, err := h.Create(ctx, actor)
			require.NoError(t, err)
		}
	}
}

func TestListForAudit_Pagination(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	ids := make([]int64, 31)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	seedEdits(t, svc, rows, newsTable, testAdmin, ids...)

	first, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 1, RequestToken: "new"})
	require.NoError(t, err)
	assert.Equal(t, 31, first.Total)
	assert.Equal(t, 2, first.LastPage)
	assert.Equal(t, DefaultAuditPageSize, first.PageSize)
	require.Len(t, first.Items, 30)

	top := first.Items[0]
	assert.Equal(t, int64(31), top.RecordID)
	assert.Equal(t, 2, top.Version)
	assert.Equal(t, 1, top.From)
	assert.Equal(t, 2, top.To)
	assert.False(t, top.Deleted)
	assert.Equal(t, "Item 31", top.Description)
	assert.Equal(t, newsTable, top.ShortTable)
	assert.Equal(t, "contao?do=news&amp;act=edit&amp;id=31&amp;rt=new", top.EditURL)
	assert.NotEmpty(t, top.Date)

	second, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, int64(1), second.Items[0].RecordID)

	_, err = svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 3})
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: -1})
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	zero, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, zero.Page)
}

func TestListForAudit_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, err := svc.ListForAudit(context.Background(), AuditQuery{Actor: testAdmin, Page: 1})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.LastPage)
	assert.Empty(t, page.Items)
}

func TestListForAudit_SkipsFirstVersionsAndMissingEditURL(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	require.NoError(t, rows.Put(newsTable, 1, map[string]any{"tstamp": int64(1), "title": "no link"}))
	h := mustHandle(t, svc, newsTable, 1)
	for range 2 {
		_, err := h.Create(ctx, testAdmin)
		require.NoError(t, err)
	}
	seedEdits(t, svc, rows, newsTable, testAdmin, 2)

	page, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].RecordID)
}

func TestListForAudit_NonAdminSeesOwnVersions(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	seedEdits(t, svc, rows, newsTable, testAdmin, 1)
	seedEdits(t, svc, rows, newsTable, testEditor, 2)

	page, err := svc.ListForAudit(identity.WithActor(ctx, testEditor), AuditQuery{Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].RecordID)
	assert.Equal(t, 1, page.Total)
}

func TestListForAudit_UserTableNeedsModuleAccess(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	seedEdits(t, svc, rows, DefaultUserTable, testEditor, 7)
	seedEdits(t, svc, rows, newsTable, testEditor, 1)

	page, err := svc.ListForAudit(ctx, AuditQuery{Actor: testEditor, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, newsTable, page.Items[0].Table)
	assert.Equal(t, 2, page.Total)

	manager := &identity.Actor{ID: 7, Username: "k.jones", Modules: []string{"news", DefaultUserModule}}
	page, err = svc.ListForAudit(ctx, AuditQuery{Actor: manager, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestListForAudit_DeletedRecords(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	seedEdits(t, svc, rows, newsTable, testAdmin, 1, 2)
	seedEdits(t, svc, rows, DefaultFilesTable, testAdmin, 3)
	rows.Delete(newsTable, 1)
	rows.Delete(DefaultFilesTable, 3)

	page, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	deleted := map[int64]bool{}
	for _, it := range page.Items {
		deleted[it.RecordID] = it.Deleted
	}
	assert.Equal(t, map[int64]bool{1: true, 2: false}, deleted)
}

func TestListForAudit_DropsMissingTables(t *testing.T) {
	svc, _, rows := newTestService(t)
	ctx := context.Background()

	seedEdits(t, svc, rows, DefaultUserTable, testAdmin, 1)
	seedEdits(t, svc, rows, newsTable, testAdmin, 1)
	rows.DropTable(DefaultUserTable)

	page, err := svc.ListForAudit(ctx, AuditQuery{Actor: testAdmin, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, newsTable, page.Items[0].Table)
}

func TestTruncate(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short text unchanged", "Short title", 32, "Short title"},
		{"cut at word boundary", "The quick brown fox jumps over the lazy dog again", 32, "The quick brown fox jumps over …"},
		{"long first word cut hard", "Supercalifragilisticexpialidocious", 18, "Supercalifragilist …"},
		{"markup and newlines removed", "<b>Bold</b>\nText", 32, "Bold Text"},
		{"exact length kept", "tl_calendar_events", 18, "tl_calendar_events"},
		{"quotes stay plain text", `Tom's "quoted" <i>title</i>`, 32, `Tom's "quoted" title`},
		{"entities decoded before cutting", "Fish &amp; Chips &amp; Peas", 12, "Fish & Chips …"},
		{"hard cut keeps whole characters", "Caf&eacute;&eacute;&eacute;&eacute;", 6, "Cafééé …"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.truncate(tt.in, tt.n))
		})
	}
}
