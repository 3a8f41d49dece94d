package stripe

import "github.com/inhousecard/paycore/gateway"

// Register Stripe source with the gateway registry
func init() {
	gateway.Register("stripe", NewSource)
}
