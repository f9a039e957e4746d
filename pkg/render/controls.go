package render

import (
	"strconv"
	"strings"
)

// Action is a navigation control tag.
type Action string

// Control actions.
const (
	ActionJumpStart Action = "jump-start"
	ActionPrev      Action = "prev"
	ActionRefresh   Action = "refresh"
	ActionNext      Action = "next"
	ActionJumpEnd   Action = "jump-end"
)

const (
	customIDPrefix = "pagination"
	customIDSep    = ":"
	// UnknownPage marks a control that does not encode the page it was
	// rendered for.
	UnknownPage = -1
)

// legacyIDs maps the unversioned custom ids used before controls carried a
// page index.
var legacyIDs = map[string]Action{
	"pagination_jump_start": ActionJumpStart,
	"pagination_prev":       ActionPrev,
	"pagination_refresh":    ActionRefresh,
	"pagination_next":       ActionNext,
	"pagination_jump_end":   ActionJumpEnd,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionJumpStart, ActionPrev, ActionRefresh, ActionNext, ActionJumpEnd:
		return true
	default:
		return false
	}
}

// IsNavigation reports whether a moves between pages.
func (a Action) IsNavigation() bool {
	return a.Valid() && a != ActionRefresh
}

// Target returns the page a navigation action leads to from current,
// clamped to [0, total-1]. Refresh keeps the current page.
func (a Action) Target(current, total int) int {
	last := max(total-1, 0)
	var target int
	switch a {
	case ActionJumpStart:
		target = 0
	case ActionPrev:
		target = current - 1
	case ActionNext:
		target = current + 1
	case ActionJumpEnd:
		target = last
	default:
		target = current
	}
	return min(max(target, 0), last)
}

// CustomID encodes the action and the page it was rendered for.
func CustomID(a Action, page int) string {
	return customIDPrefix + customIDSep + string(a) + customIDSep + strconv.Itoa(page)
}

// ParseCustomID decodes a control custom id. Legacy ids decode with
// UnknownPage.
func ParseCustomID(id string) (Action, int, bool) {
	if a, ok := legacyIDs[id]; ok {
		return a, UnknownPage, true
	}
	parts := strings.Split(id, customIDSep)
	if len(parts) != 3 || parts[0] != customIDPrefix {
		return "", 0, false
	}
	a := Action(parts[1])
	if !a.Valid() {
		return "", 0, false
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil || page < 0 {
		return "", 0, false
	}
	return a, page, true
}

// Control is one button of a page's control row.
type Control struct {
	Action   Action
	Label    string
	Disabled bool
	// Page is the page index the control was rendered for.
	Page int
}

// CustomID returns the encoded id of the control.
func (c Control) CustomID() string { return CustomID(c.Action, c.Page) }

// Controls returns the control row for a page. Single-page results expose
// only refresh.
func Controls(page, totalPages int, paginated bool) []Control {
	refresh := Control{Action: ActionRefresh, Label: "🔄 Refresh", Page: page}
	if !paginated {
		return []Control{refresh}
	}
	first := page <= 0
	last := page >= totalPages-1
	return []Control{
		{Action: ActionJumpStart, Label: "⏮️", Disabled: first, Page: page},
		{Action: ActionPrev, Label: "◀️ Previous", Disabled: first, Page: page},
		refresh,
		{Action: ActionNext, Label: "Next ▶️", Disabled: last, Page: page},
		{Action: ActionJumpEnd, Label: "⏭️", Disabled: last, Page: page},
	}
}
