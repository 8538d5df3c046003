package notify

import (
	"context"

	"go.uber.org/zap"
)

// Event names emitted by the services.
const (
	EventLevelUp         = "level_up"
	EventBadgeEarned     = "badge_earned"
	EventStreakMilestone = "streak_milestone"
	EventStreakAtRisk    = "streak_at_risk"
	EventStreakBroken    = "streak_broken"
	EventDuelInvite      = "duel_invite"
	EventDuelAccepted    = "duel_accepted"
	EventDuelResolved    = "duel_resolved"
	EventProofReviewed   = "proof_reviewed"
	EventChallengeInvite = "challenge_invite"
	EventChallengeDone   = "challenge_completed"
)

// Notifier delivers user-facing notifications. Delivery is best-effort;
// implementations must never block callers on downstream failures.
type Notifier interface {
	Notify(ctx context.Context, userID uint, event string, payload map[string]interface{})
}

// LogNotifier writes notifications to the structured log. It stands in
// for a push/email gateway in deployments that have none configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID uint, event string, payload map[string]interface{}) {
	n.log.Info("notification",
		zap.Uint("user_id", userID),
		zap.String("event", event),
		zap.Any("payload", payload),
	)
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) Notify(context.Context, uint, string, map[string]interface{}) {}
