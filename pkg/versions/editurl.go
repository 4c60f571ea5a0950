package versions

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/txn2/record-versions/pkg/identity"
)

var (
	stateParamRe   = regexp.MustCompile(`&(amp;)?state=`)
	idParamRe      = regexp.MustCompile(`&(amp;)?id=[^&]+`)
	toggleIDRe     = regexp.MustCompile(`(&(amp;)?)t(id=[^&]+)`)
	stateValueRe   = regexp.MustCompile(`(&(amp;)?)state=[^&]*`)
	loginModuleRe  = regexp.MustCompile(`do=login(&|$)`)
	editAllRe      = regexp.MustCompile(`act=(edit|override)All`)
	ampersandRe    = regexp.MustCompile(`&(amp;)?`)
	popupParamRe   = regexp.MustCompile(`&(amp;)?popup=1`)
	requestTokenRe = regexp.MustCompile(`&(amp;)?rt=[^&]+`)
)

// resolveEditURL returns the edit link stored with a new version. An explicit
// URL wins; otherwise the current request URL is rewritten to point at the
// edit view of this record.
func (h *Handle) resolveEditURL(ctx context.Context, actor *identity.Actor) string {
	id := strconv.FormatInt(h.recordID, 10)
	if h.editURL != nil {
		return formatEditURL(*h.editURL, id)
	}

	u := identity.GetRequestURL(ctx)
	if u == "" {
		return ""
	}

	// Visibility toggles carry the record as tid and the state as a flag.
	if stateParamRe.MatchString(u) {
		u = idParamRe.ReplaceAllString(u, "")
		u = toggleIDRe.ReplaceAllString(u, "${1}${3}")
		u = stateValueRe.ReplaceAllString(u, "${1}act=edit")
	}

	// The personal data module edits the current user.
	if loginModuleRe.MatchString(u) {
		u = loginModuleRe.ReplaceAllString(u, "do=user${1}")
		u += "&amp;act=edit&amp;id=" + strconv.FormatInt(actor.UserID(), 10)
		if tok := identity.GetRequestToken(ctx); tok != "" {
			u += "&amp;rt=" + tok
		}
	}

	return editAllRe.ReplaceAllString(u, "act=edit&id="+id)
}

// formatEditURL substitutes the first %d or %s placeholder with the record ID.
func formatEditURL(tpl, id string) string {
	for i := 0; i+1 < len(tpl); i++ {
		if tpl[i] != '%' {
			continue
		}
		switch tpl[i+1] {
		case '%':
			i++
		case 'd', 's':
			return strings.ReplaceAll(tpl[:i], "%%", "%") + id + strings.ReplaceAll(tpl[i+2:], "%%", "%")
		}
	}
	return strings.ReplaceAll(tpl, "%%", "%")
}

// normalizeEditURL prepares a stored edit link for display. Ampersands are
// encoded, the popup flag is dropped and the request token is replaced with
// the current one.
func normalizeEditURL(u, token string) string {
	u = ampersandRe.ReplaceAllString(u, "&amp;")
	u = popupParamRe.ReplaceAllString(u, "")
	if token != "" {
		u = requestTokenRe.ReplaceAllString(u, "&amp;rt="+token)
	}
	return u
}
