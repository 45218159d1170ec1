package anon

import (
	"context"
)

// ActionRequest is a button press: the action, the reference it carried, and
// the text for actions that send one.
type ActionRequest struct {
	UserID int64
	Action Action
	Ref    string
	Text   string
}

type actionFunc func(ctx context.Context, req ActionRequest) (*Outcome, error)

// ErrUnknownAction is returned for actions with no handler.
var ErrUnknownAction = newError(KindValidation, "Unknown action.")

func (s *Service) actionTable() map[Action]actionFunc {
	return map[Action]actionFunc{
		ActionReply: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.ReplyInDialog(ctx, req.UserID, req.Ref, req.Text)
		},
		ActionClose: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.CloseDialog(ctx, req.UserID, req.Ref)
		},
		ActionAccept: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.RespondToConsent(ctx, req.Ref, req.UserID, DecisionAccept)
		},
		ActionReject: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.RespondToConsent(ctx, req.Ref, req.UserID, DecisionReject)
		},
		ActionApprove: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.ModeratePublic(ctx, req.UserID, req.Ref, true)
		},
		ActionDecline: func(ctx context.Context, req ActionRequest) (*Outcome, error) {
			return s.ModeratePublic(ctx, req.UserID, req.Ref, false)
		},
	}
}

// Perform routes a button press to the operation it stands for.
func (s *Service) Perform(ctx context.Context, req ActionRequest) (*Outcome, error) {
	fn, ok := s.actions[req.Action]
	if !ok {
		return nil, ErrUnknownAction
	}
	return fn(ctx, req)
}
