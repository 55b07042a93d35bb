package instance

import "github.com/recurware/billing-backend/pkg/env"

// GetID identifies this process in logs. It prefers an explicit
// BILLING_INSTANCE_ID, falls back to the platform-assigned DYNO name, and
// defaults to "local".
func GetID() string {
	return env.First("local", "BILLING_INSTANCE_ID", "DYNO")
}
