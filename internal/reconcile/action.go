package reconcile

import "fmt"

// Action is one of the per-row operations a reconciliation item supports.
type Action string

const (
	ActionEditCategory Action = "editCategory"
	ActionMarkDeleted  Action = "markDeleted"
	ActionRestore      Action = "restore"
)

// Actions lists every action in display order.
var Actions = []Action{ActionEditCategory, ActionMarkDeleted, ActionRestore}

// ParseAction converts a wire value into an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// NoticeKey is the locale key prefix of the confirmation shown after a
// successful action.
func (a Action) NoticeKey() string {
	switch a {
	case ActionEditCategory:
		return "toast.changeCategory"
	case ActionMarkDeleted:
		return "toast.markAsDeleted"
	case ActionRestore:
		return "toast.restoreTransaction"
	}
	return ""
}
