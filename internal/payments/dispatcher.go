package payments

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

var paymentsTracer = otel.Tracer("careflow.internal.payments")

// Dispatcher routes settlement to the strategy registered for the request's
// payment method. New strategies are added here, never in the state machine.
type Dispatcher struct {
	strategies map[Method]Strategy
	logger     *logging.Logger
}

// NewDispatcher creates a dispatcher with the given strategies. Nil entries
// are allowed; dispatching to them yields ErrUnknownMethod.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		strategies: make(map[Method]Strategy),
		logger:     logger,
	}
}

// Register binds a strategy to a method, replacing any previous binding.
func (d *Dispatcher) Register(method Method, s Strategy) *Dispatcher {
	if s != nil {
		d.strategies[method] = s
	}
	return d
}

// Dispatch settles the appointment using the strategy for the given method.
func (d *Dispatcher) Dispatch(ctx context.Context, method Method, pc Context) (Outcome, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("careflow.appointment_id", pc.AppointmentID),
		attribute.String("careflow.payment_method", string(method)),
		attribute.Int64("careflow.amount_cents", pc.AmountCents),
	)

	strategy, ok := d.strategies[method]
	if !ok {
		span.RecordError(ErrUnknownMethod)
		return OutcomeFailed, fmt.Errorf("payments: %w: %q", ErrUnknownMethod, method)
	}

	outcome, err := strategy.Process(ctx, pc)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("payment settlement error",
			"appointment_id", pc.AppointmentID,
			"method", method,
			"error", err,
		)
		return OutcomeFailed, err
	}

	d.logger.Info("payment settled",
		"appointment_id", pc.AppointmentID,
		"method", method,
		"outcome", outcome,
		"amount_cents", pc.AmountCents,
	)
	span.SetAttributes(attribute.String("careflow.payment_outcome", string(outcome)))
	return outcome, nil
}
