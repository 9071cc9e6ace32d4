package payments

import (
	"context"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// CashStrategy records the intent to pay at the front desk. It always
// returns Pending; staff confirm collection out of band, so there is
// nothing to retry here.
type CashStrategy struct {
	logger *logging.Logger
}

// NewCashStrategy creates the cash settlement strategy.
func NewCashStrategy(logger *logging.Logger) *CashStrategy {
	if logger == nil {
		logger = logging.Default()
	}
	return &CashStrategy{logger: logger}
}

// Process marks the settlement as pending manual collection.
func (s *CashStrategy) Process(ctx context.Context, pc Context) (Outcome, error) {
	s.logger.Info("cash payment pending manual collection",
		"appointment_id", pc.AppointmentID,
		"amount_cents", pc.AmountCents,
	)
	return OutcomePending, nil
}
