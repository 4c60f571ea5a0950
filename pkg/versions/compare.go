package versions

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/txn2/record-versions/pkg/schema"
)

// Compare renders the differences between two versions of the record as
// HTML. The versions are chosen from in, falling back to the active version
// and its predecessor. Fields are compared in key order.
func (h *Handle) Compare(ctx context.Context, in CompareInput) (*Comparison, error) {
	start := time.Now()
	defer func() { operationDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds()) }()

	out := &Comparison{}
	if !h.Enabled() {
		out.Content = h.noVersionsMessage()
		return out, nil
	}

	recs, err := h.svc.repo.List(ctx, h.table.Name, h.recordID)
	if err != nil {
		return nil, storageErr("listing versions", err)
	}
	if len(recs) < 2 {
		out.Content = h.noVersionsMessage()
		return out, nil
	}
	out.Versions = h.summaries(recs)

	byVersion := make(map[int]Record, len(recs))
	index := recs[0].Version
	for _, r := range recs {
		byVersion[r.Version] = r
	}
	for _, r := range recs {
		if r.Active {
			index = r.Version
			break
		}
	}

	out.To = pickVersion(byVersion, in.FormTo, in.QueryTo)
	if out.To == 0 {
		out.To = index
	}
	out.From = pickVersion(byVersion, in.FormFrom, in.QueryFrom)
	if out.From == 0 {
		out.From = defaultFrom(recs, byVersion, index)
	}

	var buf strings.Builder
	if out.To > 0 && out.From > 0 {
		h.writeDiff(&buf, byVersion[out.From].Payload, byVersion[out.To].Payload)
	}
	if buf.Len() == 0 {
		out.Content = "<p>The two versions are identical</p>"
	} else {
		out.Content = buf.String()
	}
	return out, nil
}

func (h *Handle) noVersionsMessage() string {
	return fmt.Sprintf("<p>There are no versions of %s.id=%d</p>", h.table.Name, h.recordID)
}

// defaultFrom picks the version to compare the index version against when
// none was requested. recs is ordered newest first. The predecessor of index
// is used, or the nearest older surviving version when it was purged. When
// index is the oldest surviving version the newest version is used.
func defaultFrom(recs []Record, byVersion map[int]Record, index int) int {
	newest, oldest := recs[0].Version, recs[len(recs)-1].Version
	if len(recs) > index || index == oldest {
		return newest
	}
	if _, ok := byVersion[index-1]; ok {
		return index - 1
	}
	for _, r := range recs {
		if r.Version < index {
			return r.Version
		}
	}
	return newest
}

// pickVersion returns the first requested version that exists, or 0.
func pickVersion(byVersion map[int]Record, requested ...int) int {
	for _, v := range requested {
		if v == 0 {
			continue
		}
		if _, ok := byVersion[v]; ok {
			return v
		}
	}
	return 0
}

func (h *Handle) writeDiff(buf *strings.Builder, from, to map[string]any) {
	keys := make([]string, 0, len(to))
	for k := range to {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fv, tv := from[k], to[k]
		if looseEqual(fv, tv) {
			continue
		}
		field := h.table.Field(k)
		if field.Hidden {
			continue
		}
		fv, tv = h.presentValue(k, field, fv), h.presentValue(k, field, tv)
		buf.WriteString(h.svc.renderer.Render(h.label(k, field), toLines(fv), toLines(tv)))
	}
}

// presentValue converts a stored value into its display form.
func (h *Handle) presentValue(key string, field schema.Field, v any) any {
	binary := h.table.IsBinary(key)

	if field.Encrypted {
		if plain, err := h.svc.decrypter.Decrypt(toString(v)); err == nil {
			v = plain
		}
	}

	if field.Multiple {
		if field.Delimiter != "" {
			v = strings.ReplaceAll(toString(v), field.Delimiter, field.Delimiter+" ")
		} else if s, ok := v.(string); ok {
			if structured, ok := decodeStructured(s); ok {
				v = implodeRecursive(structured, binary)
			}
		}
	}

	if binary && isBinaryUUID(v) {
		v = binToUUID(v)
	}

	kind := field.DateKind
	if key == "tstamp" {
		kind = schema.DateKindDatim
	}
	switch kind {
	case schema.DateKindDate:
		v = h.formatTimestamp(v, h.svc.dateLayout)
	case schema.DateKindTime:
		v = h.formatTimestamp(v, h.svc.timeLayout)
	case schema.DateKindDatim:
		v = h.formatTimestamp(v, h.svc.datimLayout)
	}

	if !field.KeepEntities {
		v = unescapeEntities(v)
	}
	return v
}

// formatTimestamp renders a Unix timestamp. Empty and non-numeric values
// render as an empty string.
func (h *Handle) formatTimestamp(v any, layout string) string {
	ts, ok := toInt64(v)
	if !ok || ts == 0 {
		return ""
	}
	return h.svc.formatTime(time.Unix(ts, 0), layout)
}

func (h *Handle) label(key string, field schema.Field) string {
	if field.Label != "" {
		return field.Label
	}
	if l, ok := h.svc.registry.Label(key); ok && l != "" {
		return l
	}
	return key
}

func unescapeEntities(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = html.UnescapeString(toString(e))
		}
		return out
	case map[string]any:
		return t
	case []byte:
		return html.UnescapeString(string(t))
	case string:
		return html.UnescapeString(t)
	default:
		return v
	}
}

// toLines splits a display value into lines. Lists yield one line per
// element, mappings one line per value in key order.
func toLines(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = toString(e)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = toString(t[k])
		}
		return out
	default:
		return strings.Split(toString(v), "\n")
	}
}
