package mercadopago

import "github.com/inhousecard/paycore/gateway"

// Register Mercado Pago source with the gateway registry
func init() {
	gateway.Register("mercadopago", NewSource)
}
