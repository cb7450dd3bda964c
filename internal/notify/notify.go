// Package notify defines the outbound notification port. Delivery is
// best-effort and fire-and-forget; domain state machines never depend on
// a notification succeeding.
package notify

import (
	"context"

	"github.com/zivra/zivra-custody/internal/logger"
	"github.com/zivra/zivra-custody/pkg/types"
)

// Notifier delivers recovery events to guardians.
type Notifier interface {
	// RecoveryInitiated informs a guardian that a recovery vote has opened.
	RecoveryInitiated(ctx context.Context, guardian *types.Guardian, request *types.RecoveryRequest)
	// RecoveryApproved informs a guardian that the quorum was reached.
	RecoveryApproved(ctx context.Context, guardian *types.Guardian, request *types.RecoveryRequest)
}

// LogNotifier writes notifications to the structured log. It stands in for
// a real delivery channel (email, SMS) in development and tests.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// RecoveryInitiated logs the initiation notice
func (n *LogNotifier) RecoveryInitiated(ctx context.Context, guardian *types.Guardian, request *types.RecoveryRequest) {
	logger.Info(ctx, "recovery initiated, notifying guardian",
		"guardian_id", guardian.ID,
		"contact", guardian.Contact,
		"request_id", request.ID,
		"votes_required", request.VotesRequired,
	)
}

// RecoveryApproved logs the approval notice
func (n *LogNotifier) RecoveryApproved(ctx context.Context, guardian *types.Guardian, request *types.RecoveryRequest) {
	logger.Info(ctx, "recovery approved, notifying guardian",
		"guardian_id", guardian.ID,
		"contact", guardian.Contact,
		"request_id", request.ID,
	)
}
