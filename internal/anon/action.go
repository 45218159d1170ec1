package anon

// Action tags the buttons attached to notifications.
type Action string

const (
	ActionReply  Action = "reply"
	ActionClose  Action = "close"
	ActionAccept Action = "accept"
	ActionReject Action = "reject"

	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Actions lists every action, in display order.
var Actions = []Action{ActionReply, ActionClose, ActionAccept, ActionReject, ActionApprove, ActionDecline}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// ReplyButtons are attached to every delivered dialog message.
func ReplyButtons(code string) []Button {
	return []Button{
		{Label: "Reply", Action: ActionReply, Ref: code},
		{Label: "Close", Action: ActionClose, Ref: code},
	}
}

// ConsentButtons are attached to a consent placeholder.
func ConsentButtons(requestID string) []Button {
	return []Button{
		{Label: "Accept", Action: ActionAccept, Ref: requestID},
		{Label: "Decline", Action: ActionReject, Ref: requestID},
	}
}

// ModerationButtons are attached to a public post sent to the administrators.
func ModerationButtons(requestID string) []Button {
	return []Button{
		{Label: "Approve", Action: ActionApprove, Ref: requestID},
		{Label: "Reject", Action: ActionDecline, Ref: requestID},
	}
}
