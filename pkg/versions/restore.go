package versions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/txn2/record-versions/pkg/audit"
	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/identity"
	"github.com/txn2/record-versions/pkg/rowstore"
	"github.com/txn2/record-versions/pkg/schema"
)

// Restore writes a stored version back to the live row and makes it the
// active version. Fields that no longer exist are dropped and fields added
// since the version was stored are reset to their empty value. It returns the
// data that was written, or nil when the version does not exist or its
// payload cannot be decoded. When actor is nil the actor is taken from ctx.
func (h *Handle) Restore(ctx context.Context, version int, actor *identity.Actor) (map[string]any, error) {
	if !h.Enabled() {
		return nil, nil
	}
	svc := h.svc
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("restore").Observe(time.Since(start).Seconds()) }()

	rec, err := svc.repo.Get(ctx, h.table.Name, h.recordID, version)
	if err != nil {
		return nil, storageErr("loading version", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Payload == nil {
		svc.logger.WarnContext(ctx, "version payload is not a mapping",
			"table", h.table.Name, "record_id", h.recordID, "version", version)
		return nil, nil
	}
	data := rec.Payload

	if err := h.restoreFile(ctx, data); err != nil {
		return nil, err
	}

	cols, err := svc.rows.Columns(ctx, h.table.Name)
	if err != nil {
		return nil, storageErr("reading columns", err)
	}
	restored := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := data[c.Name]; ok {
			restored[c.Name] = v
			continue
		}
		restored[c.Name] = h.emptyValue(c)
	}

	if err := svc.rows.Set(ctx, h.table.Name, h.recordID, restored); err != nil {
		return nil, storageErr("writing record", err)
	}
	if err := svc.repo.Activate(ctx, h.table.Name, h.recordID, version); err != nil {
		return nil, storageErr("activating version", err)
	}
	versionsRestoredTotal.WithLabelValues(h.table.Name).Inc()

	if actor == nil {
		actor = identity.GetActor(ctx)
	}
	svc.logEvent(ctx, audit.NewEvent(audit.ActionVersionRestored).
		WithRecord(h.table.Name, h.recordID, version).
		WithUser(h.usernameFor(actor), h.userIDFor(actor)).
		WithTimestamp(svc.now()))

	var errs []error
	for _, hook := range svc.restoreHooks {
		if err := hook.VersionRestored(ctx, h.table.Name, h.recordID, version, restored); err != nil {
			errs = append(errs, fmt.Errorf("running restore hook: %w", err))
		}
	}
	for _, hook := range svc.legacyRestoreHooks {
		svc.logger.WarnContext(ctx, "legacy restore hook is deprecated, register a RestoreHook instead",
			"table", h.table.Name)
		if err := hook.Restored(ctx, h.recordID, h.table.Name, restored, version); err != nil {
			errs = append(errs, fmt.Errorf("running legacy restore hook: %w", err))
		}
	}

	return restored, errors.Join(errs...)
}

// emptyValue is the reset value of a column missing from a stored version. A
// declared column definition wins over the live column type.
func (h *Handle) emptyValue(c rowstore.Column) any {
	if h.table.Field(c.Name).SQL != "" {
		return h.table.EmptyValue(c.Name)
	}
	return schema.EmptyValueForColumn(c.DataType, c.Nullable)
}

// restoreFile writes the stored content back to the file behind a registry
// row. The path is taken from the live row.
func (h *Handle) restoreFile(ctx context.Context, data map[string]any) error {
	if h.table.Name != h.svc.filesTable || h.svc.files == nil {
		return nil
	}
	content, ok := data["content"]
	if !ok {
		return nil
	}
	row, err := h.svc.rows.Get(ctx, h.table.Name, h.recordID)
	if err != nil {
		return storageErr("loading record", err)
	}
	p, ok := h.editableFile(row)
	if !ok {
		return nil
	}
	if err := files.WriteContent(ctx, h.svc.files, p, toString(content)); err != nil {
		return storageErr("writing file content", err)
	}
	return nil
}
