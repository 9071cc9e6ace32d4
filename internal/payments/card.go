package payments

import "context"

// CardStrategy settles card charges through the external gateway.
type CardStrategy struct {
	gateway *GatewayClient
}

// NewCardStrategy creates the card settlement strategy.
func NewCardStrategy(gateway *GatewayClient) *CardStrategy {
	if gateway == nil {
		panic("payments: gateway client required")
	}
	return &CardStrategy{gateway: gateway}
}

// Process charges the patient's card. The gateway either accepts (Paid) or
// declines (Failed); card settlement is never left pending.
func (s *CardStrategy) Process(ctx context.Context, pc Context) (Outcome, error) {
	return s.gateway.Settle(ctx, "/v1/charges", pc)
}
