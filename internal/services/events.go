package services

import (
	"context"

	"github.com/zivstay/Homis-sub000/internal/core"
)

// EventPublisher receives ledger activity for downstream consumers (export
// worker, notification fan-out). Publishing is best-effort: the engine logs
// failures and never fails the mutating request over them.
type EventPublisher interface {
	PublishObligationCreated(ctx context.Context, o core.DebtObligation) error
	PublishObligationSettled(ctx context.Context, o core.DebtObligation) error
	PublishPairNetted(ctx context.Context, boardID, userA, userB string, netCents int64) error
}
