package versions

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/txn2/record-versions/pkg/identity"
	"github.com/txn2/record-versions/pkg/rowstore"
)

// Display widths of the audit listing.
const (
	auditDescriptionChars = 32
	auditTableChars       = 18
	ellipsis              = " …"
)

// AuditQuery selects a page of the audit listing.
type AuditQuery struct {
	// Actor is the user viewing the listing. When nil it is taken from the
	// context. Non-admin actors only see their own versions.
	Actor *identity.Actor

	// Page is the 1-based page number. Zero selects the first page.
	Page int

	// PageSize defaults to DefaultAuditPageSize.
	PageSize int

	// RequestToken replaces the token in stored edit links. When empty it is
	// taken from the context.
	RequestToken string
}

// ListForAudit returns one page of recent changes across all tables. Only
// versions above 1 that carry an edit link are listed. Versions of deleted
// registry files and of tables that no longer exist are left out.
func (s *Service) ListForAudit(ctx context.Context, q AuditQuery) (*Page, error) {
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("audit").Observe(time.Since(start).Seconds()) }()

	actor := q.Actor
	if actor == nil {
		actor = identity.GetActor(ctx)
	}
	token := q.RequestToken
	if token == "" {
		token = identity.GetRequestToken(ctx)
	}
	size := q.PageSize
	if size < 1 {
		size = DefaultAuditPageSize
	}
	page := q.Page
	if page == 0 {
		page = 1
	}

	var filter AuditFilter
	if actor == nil || !actor.Admin {
		uid := actor.UserID()
		filter.UserID = &uid
	}

	total, err := s.repo.CountAudit(ctx, filter)
	if err != nil {
		return nil, storageErr("counting audit versions", err)
	}
	last := (total + size - 1) / size
	if page < 1 || (last > 0 && page > last) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, last)
	}

	recs, err := s.repo.ListAudit(ctx, filter, size, (page-1)*size)
	if err != nil {
		return nil, storageErr("listing audit versions", err)
	}

	out := &Page{Total: total, Page: page, PageSize: size, LastPage: last, Items: make([]Summary, 0, len(recs))}
	for _, r := range recs {
		if r.Table == s.userTable && !actor.HasAccess(s.userModule) {
			auditRowsDroppedTotal.WithLabelValues("user_module").Inc()
			continue
		}

		exists, err := s.rows.Exists(ctx, r.Table, r.RecordID)
		if errors.Is(err, rowstore.ErrTableNotFound) {
			auditRowsDroppedTotal.WithLabelValues("table_missing").Inc()
			s.logger.DebugContext(ctx, "skipping version of missing table", "table", r.Table)
			continue
		}
		if err != nil {
			return nil, storageErr("checking record", err)
		}
		if !exists && r.Table == s.filesTable {
			auditRowsDroppedTotal.WithLabelValues("file_deleted").Inc()
			continue
		}

		out.Items = append(out.Items, Summary{
			Table:       r.Table,
			ShortTable:  s.truncate(r.Table, auditTableChars),
			RecordID:    r.RecordID,
			Version:     r.Version,
			CreatedAt:   r.CreatedAt,
			Date:        s.formatTime(r.CreatedAt, s.datimLayout),
			Username:    r.Username,
			UserID:      r.UserID,
			Description: s.truncate(r.Description, auditDescriptionChars),
			EditURL:     normalizeEditURL(r.EditURL, token),
			Active:      r.Active,
			From:        max(r.Version-1, 1),
			To:          r.Version,
			Deleted:     !exists,
		})
	}
	return out, nil
}

var (
	lineBreakRe  = regexp.MustCompile(`[\t\n\r]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// truncate shortens s to about n characters at a word boundary and appends
// an ellipsis when something was cut. Markup is removed first and the result
// is plain text with entities decoded. A first word longer than n is cut hard.
func (s *Service) truncate(str string, n int) string {
	str = lineBreakRe.ReplaceAllString(str, " ")
	str = html.UnescapeString(s.sanitizer.Sanitize(str))
	if utf8.RuneCountInString(str) <= n {
		return str
	}

	var words []string
	count := 0
	cut := false
	for _, chunk := range whitespaceRe.Split(str, -1) {
		count += utf8.RuneCountInString(chunk)
		if count <= n {
			words = append(words, chunk)
			count++
			continue
		}
		if len(words) == 0 {
			words = append(words, string([]rune(chunk)[:n]))
		}
		cut = true
		break
	}

	out := strings.Join(words, " ")
	if cut {
		out += ellipsis
	}
	return out
}
