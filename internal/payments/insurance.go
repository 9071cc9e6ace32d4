package payments

import "context"

// InsuranceStrategy settles charges as insurance claims through the external
// gateway.
type InsuranceStrategy struct {
	gateway *GatewayClient
}

// NewInsuranceStrategy creates the insurance settlement strategy.
func NewInsuranceStrategy(gateway *GatewayClient) *InsuranceStrategy {
	if gateway == nil {
		panic("payments: gateway client required")
	}
	return &InsuranceStrategy{gateway: gateway}
}

// Process files a claim with the settlement authority and returns Paid or
// Failed depending on adjudication.
func (s *InsuranceStrategy) Process(ctx context.Context, pc Context) (Outcome, error) {
	return s.gateway.Settle(ctx, "/v1/claims", pc)
}
