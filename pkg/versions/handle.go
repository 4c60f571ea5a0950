package versions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/txn2/record-versions/pkg/audit"
	"github.com/txn2/record-versions/pkg/files"
	"github.com/txn2/record-versions/pkg/identity"
	"github.com/txn2/record-versions/pkg/schema"
)

// Handle operates on the versions of a single record. A Handle is cheap and
// not safe for concurrent use; create one per request.
type Handle struct {
	svc      *Service
	table    *schema.Table
	recordID int64

	editURL  *string
	username *string
	userID   *int64
}

// Table returns the table name.
func (h *Handle) Table() string {
	return h.table.Name
}

// RecordID returns the record ID.
func (h *Handle) RecordID() int64 {
	return h.recordID
}

// Enabled reports whether versioning is enabled for the table.
func (h *Handle) Enabled() bool {
	return h.table.Versioning
}

// SetEditURL overrides the edit URL stored with new versions. A %d or %s
// placeholder is replaced with the record ID.
func (h *Handle) SetEditURL(url string) {
	h.editURL = &url
}

// SetUsername overrides the username stored with new versions.
func (h *Handle) SetUsername(name string) {
	h.username = &name
}

// SetUserID overrides the user ID stored with new versions.
func (h *Handle) SetUserID(id int64) {
	h.userID = &id
}

// LatestVersion returns the highest version number of the record. The second
// result is false when versioning is disabled for the table.
func (h *Handle) LatestVersion(ctx context.Context) (int, bool, error) {
	if !h.Enabled() {
		return 0, false, nil
	}
	v, err := h.svc.repo.LatestVersion(ctx, h.table.Name, h.recordID)
	if err != nil {
		return 0, false, storageErr("reading latest version", err)
	}
	return v, true, nil
}

// Versions lists the versions of the record newest first, for a version
// selector. It returns nothing unless there are at least two versions.
func (h *Handle) Versions(ctx context.Context) ([]Summary, error) {
	if !h.Enabled() {
		return nil, nil
	}
	recs, err := h.svc.repo.List(ctx, h.table.Name, h.recordID)
	if err != nil {
		return nil, storageErr("listing versions", err)
	}
	if len(recs) < 2 {
		return nil, nil
	}
	return h.summaries(recs), nil
}

func (h *Handle) summaries(recs []Record) []Summary {
	out := make([]Summary, len(recs))
	for i, r := range recs {
		out[i] = Summary{
			Table:       r.Table,
			RecordID:    r.RecordID,
			Version:     r.Version,
			CreatedAt:   r.CreatedAt,
			Date:        h.svc.formatTime(r.CreatedAt, h.svc.datimLayout),
			Username:    r.Username,
			UserID:      r.UserID,
			Description: r.Description,
			EditURL:     r.EditURL,
			Active:      r.Active,
		}
	}
	return out
}

// Initialize creates the first version of a record unless the record already
// has versions.
func (h *Handle) Initialize(ctx context.Context, actor *identity.Actor) (*Record, error) {
	if !h.Enabled() {
		return nil, nil //nolint:nilnil // versioning disabled is a no-op
	}
	n, err := h.svc.repo.Count(ctx, h.table.Name, h.recordID)
	if err != nil {
		return nil, storageErr("counting versions", err)
	}
	if n > 0 {
		return nil, nil //nolint:nilnil // already initialized
	}
	return h.Create(ctx, actor)
}

// Create stores a snapshot of the current row as the new active version.
// It returns nil without error when versioning is disabled, the row does not
// exist or the row has no modification time. When actor is nil the actor is
// taken from ctx.
func (h *Handle) Create(ctx context.Context, actor *identity.Actor) (*Record, error) {
	if !h.Enabled() {
		return nil, nil //nolint:nilnil // versioning disabled is a no-op
	}
	svc := h.svc
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("create").Observe(time.Since(start).Seconds()) }()

	if _, err := svc.PurgeExpired(ctx); err != nil {
		return nil, err
	}

	row, err := svc.rows.Get(ctx, h.table.Name, h.recordID)
	if err != nil {
		return nil, storageErr("loading record", err)
	}
	if row == nil {
		return nil, nil //nolint:nilnil // missing row is a no-op
	}
	if ts, _ := toInt64(row["tstamp"]); ts < 1 {
		return nil, nil //nolint:nilnil // unsaved row is a no-op
	}

	if err := h.captureFile(ctx, row); err != nil {
		return nil, err
	}

	if actor == nil {
		actor = identity.GetActor(ctx)
	}
	rec := &Record{
		Table:       h.table.Name,
		RecordID:    h.recordID,
		CreatedAt:   svc.now(),
		Username:    h.usernameFor(actor),
		UserID:      h.userIDFor(actor),
		Description: describe(row),
		EditURL:     h.resolveEditURL(ctx, actor),
		Payload:     row,
	}
	if err := svc.repo.Insert(ctx, rec); err != nil {
		return nil, storageErr("inserting version", err)
	}
	versionsCreatedTotal.WithLabelValues(h.table.Name).Inc()

	svc.logEvent(ctx, audit.NewEvent(audit.ActionVersionCreated).
		WithRecord(h.table.Name, h.recordID, rec.Version).
		WithUser(rec.Username, rec.UserID).
		WithTimestamp(rec.CreatedAt))

	var errs []error
	for _, hook := range svc.createHooks {
		if err := hook.VersionCreated(ctx, h.table.Name, h.recordID, rec.Version, row); err != nil {
			errs = append(errs, fmt.Errorf("running create hook: %w", err))
		}
	}
	return rec, errors.Join(errs...)
}

// captureFile adds the content of an editable registry file to the row.
func (h *Handle) captureFile(ctx context.Context, row map[string]any) error {
	p, ok := h.editableFile(row)
	if !ok {
		return nil
	}
	content, err := files.ReadContent(ctx, h.svc.files, p)
	if err != nil {
		return storageErr("reading file content", err)
	}
	row["content"] = content
	return nil
}

// editableFile returns the path of the file behind a registry row when the
// table is the file registry and the file is editable.
func (h *Handle) editableFile(row map[string]any) (string, bool) {
	svc := h.svc
	if h.table.Name != svc.filesTable || svc.files == nil || row == nil {
		return "", false
	}
	p := toString(row["path"])
	if p == "" {
		return "", false
	}
	if ext := toString(row["extension"]); ext != "" {
		return p, files.IsEditable("."+ext, svc.editable)
	}
	return p, files.IsEditable(p, svc.editable)
}

func (h *Handle) usernameFor(actor *identity.Actor) string {
	if h.username != nil {
		return *h.username
	}
	return actor.Name()
}

func (h *Handle) userIDFor(actor *identity.Actor) int64 {
	if h.userID != nil {
		return *h.userID
	}
	return actor.UserID()
}

// describe picks a short description from the first non-empty of title,
// name, first and last name, headline, selector and subject.
func describe(row map[string]any) string {
	switch {
	case !isEmpty(row["title"]):
		return toString(row["title"])
	case !isEmpty(row["name"]):
		return toString(row["name"])
	case !isEmpty(row["firstname"]):
		return toString(row["firstname"]) + " " + toString(row["lastname"])
	case !isEmpty(row["headline"]):
		if chunks, ok := decodeStructured(row["headline"]); ok {
			if m, ok := chunks.(map[string]any); ok {
				if v, ok := m["value"]; ok {
					return toString(v)
				}
			}
		}
		return toString(row["headline"])
	case !isEmpty(row["selector"]):
		return toString(row["selector"])
	case !isEmpty(row["subject"]):
		return toString(row["subject"])
	}
	return ""
}
