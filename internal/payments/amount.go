package payments

import (
	"context"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// FeeProvider looks up a doctor's current consultation fee in cents.
// A zero fee means no fee is on record.
type FeeProvider interface {
	ConsultationFee(ctx context.Context, doctorID string) (int64, error)
}

// AmountResolver decides what an appointment is billed at confirmation time.
// Precedence: the doctor's current consultation fee is authoritative; the
// amount stored on the appointment is a historical record used only when no
// fee is on file; the configured default is the last resort.
type AmountResolver struct {
	fees       FeeProvider
	defaultFee int64
	logger     *logging.Logger
}

// NewAmountResolver creates a resolver with the given fallback fee.
func NewAmountResolver(fees FeeProvider, defaultFee int64, logger *logging.Logger) *AmountResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &AmountResolver{fees: fees, defaultFee: defaultFee, logger: logger}
}

// Resolve returns the amount in cents to bill for the appointment.
func (r *AmountResolver) Resolve(ctx context.Context, doctorID string, storedAmount int64) int64 {
	if r.fees != nil {
		fee, err := r.fees.ConsultationFee(ctx, doctorID)
		if err != nil {
			r.logger.Warn("consultation fee lookup failed, falling back",
				"doctor_id", doctorID, "error", err)
		} else if fee > 0 {
			return fee
		}
	}

	if storedAmount > 0 {
		r.logger.Info("billing stored appointment amount, no current fee on file",
			"doctor_id", doctorID, "amount_cents", storedAmount)
		return storedAmount
	}

	r.logger.Warn("billing default consultation fee",
		"doctor_id", doctorID, "amount_cents", r.defaultFee)
	return r.defaultFee
}
