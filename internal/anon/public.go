package anon

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
)

// SubmitPublic queues text for publication in the public channel and asks
// every administrator to approve or reject it.
func (s *Service) SubmitPublic(ctx context.Context, authorID int64, text string) (*Outcome, error) {
	if err := s.limiter.Check(authorID); err != nil {
		return nil, err
	}
	payload, err := ValidateText(text, s.cfg.MinLength, s.cfg.MaxLength)
	if err != nil {
		return nil, err
	}
	if s.cfg.PublicChannelID == 0 {
		return nil, ErrNoPublicChannel
	}

	req := &models.PublicRequest{AuthorID: authorID, Text: payload, Status: models.PublicPending}
	if err := s.store.CreatePublicRequest(ctx, req); err != nil {
		return nil, s.fail("create public request", err)
	}
	recipients, err := s.adminRecipients(ctx, authorID)
	if err != nil {
		return nil, s.fail("list admins", err)
	}
	delivered := s.relay.Broadcast(ctx, recipients, publicRequestText(req.ID, payload, authorID), ModerationButtons(req.ID)...)
	if delivered == 0 {
		if _, err := s.store.TransitionPublicRequest(ctx, req.ID, models.PublicPending, models.PublicFailed, 0, "no moderator reachable"); err != nil {
			s.log.Error("failed to mark public request failed", zap.String("request", req.ID), zap.Error(err))
		}
		return nil, ErrDeliveryFailed
	}
	s.log.Info("public request queued", zap.String("request", req.ID), zap.Int("delivered", delivered))
	return &Outcome{Code: req.ID, Status: StatusSent, Message: publicQueuedText}, nil
}

// ModeratePublic approves or rejects a pending public post. An approved post is
// claimed before it is sent, so it is published at most once even when several
// administrators press the button.
func (s *Service) ModeratePublic(ctx context.Context, moderatorID int64, requestID string, approve bool) (*Outcome, error) {
	ok, err := s.isAdmin(ctx, moderatorID)
	if err != nil {
		return nil, s.fail("list admins", err)
	}
	if !ok {
		return nil, ErrNotModerator
	}
	req, err := s.store.GetPublicRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPublicNotFound
		}
		return nil, s.fail("get public request", err)
	}
	if req.Status != models.PublicPending {
		return nil, ErrAlreadyProcessed
	}

	if !approve {
		claimed, err := s.store.TransitionPublicRequest(ctx, req.ID, models.PublicPending, models.PublicRejected, moderatorID, "rejected")
		if err != nil {
			return nil, s.fail("reject public request", err)
		}
		if !claimed {
			return nil, ErrAlreadyProcessed
		}
		s.relay.Notify(ctx, req.AuthorID, publicRejectedText)
		s.log.Info("public request rejected", zap.String("request", req.ID), zap.Int64("moderator", moderatorID))
		return &Outcome{Code: req.ID, Status: StatusDeclined, Message: "Request rejected."}, nil
	}

	claimed, err := s.store.TransitionPublicRequest(ctx, req.ID, models.PublicPending, models.PublicApproved, moderatorID, "")
	if err != nil {
		return nil, s.fail("approve public request", err)
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}
	if !s.relay.Notify(ctx, s.cfg.PublicChannelID, publicPostText(req.Text)) {
		if _, err := s.store.TransitionPublicRequest(ctx, req.ID, models.PublicApproved, models.PublicFailed, moderatorID, "channel unreachable"); err != nil {
			s.log.Error("failed to mark public request failed", zap.String("request", req.ID), zap.Error(err))
		}
		s.relay.Notify(ctx, req.AuthorID, publicFailedText)
		return nil, ErrPublishFailed
	}
	s.relay.Notify(ctx, req.AuthorID, publicPublishedText)
	s.log.Info("public request published", zap.String("request", req.ID), zap.Int64("moderator", moderatorID))
	return &Outcome{Code: req.ID, Status: StatusPublished, Message: "Message posted."}, nil
}

func (s *Service) isAdmin(ctx context.Context, userID int64) (bool, error) {
	admins, err := s.adminRecipients(ctx, 0)
	if err != nil {
		return false, err
	}
	for _, id := range admins {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
