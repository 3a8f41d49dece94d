package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Detected payload formats. The gateway has shipped at least three webhook
// shapes over time; detection is by field presence, in fixed priority order.
const (
	FormatFeed     = "feed"     // {topic, id}
	FormatStandard = "standard" // {action, data: {id}}
	FormatV2       = "v2"       // {type, data: {id}}
	FormatUnknown  = "unknown"
)

// UnknownValue is used for both the event kind and the payment id when a
// payload carries no recognizable information.
const UnknownValue = "unknown"

// Notification is the canonical form of an inbound webhook payload. It is
// produced once per request and never mutated.
type Notification struct {
	RawPayload        json.RawMessage `json:"raw_payload"`
	DetectedFormat    string          `json:"detected_format"`
	EventKind         string          `json:"event_kind"`
	ExternalPaymentID string          `json:"external_payment_id"`
}

// Normalize maps an arbitrary webhook body into a Notification. It never
// fails: unparseable or unrecognized input degrades to the unknown format
// with UnknownValue placeholders.
func Normalize(raw []byte) Notification {
	n := Notification{
		RawPayload:        append(json.RawMessage(nil), raw...),
		DetectedFormat:    FormatUnknown,
		EventKind:         UnknownValue,
		ExternalPaymentID: UnknownValue,
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return n
	}

	topic := stringValue(body["topic"])
	dataID := nestedID(body["data"])

	switch {
	case topic != "" && stringValue(body["id"]) != "":
		n.DetectedFormat = FormatFeed
		n.ExternalPaymentID = stringValue(body["id"])
		if topic == "payment" {
			n.EventKind = "payment.updated"
		} else {
			n.EventKind = topic + ".notification"
		}
	case stringValue(body["action"]) != "" && dataID != "":
		n.DetectedFormat = FormatStandard
		n.EventKind = stringValue(body["action"])
		n.ExternalPaymentID = dataID
	case stringValue(body["type"]) != "" && body["data"] != nil:
		n.DetectedFormat = FormatV2
		n.EventKind = stringValue(body["type"])
		if dataID != "" {
			n.ExternalPaymentID = dataID
		}
	default:
		// Unknown shape: salvage any id-bearing field rather than fail.
		if id := stringValue(body["id"]); id != "" {
			n.ExternalPaymentID = id
		} else if dataID != "" {
			n.ExternalPaymentID = dataID
		}
	}

	return n
}

// PaymentRelevant reports whether the notification should trigger a
// reconciliation. Non-payment events and notifications without a usable
// payment id are audited and ignored.
func (n Notification) PaymentRelevant() bool {
	if n.ExternalPaymentID == UnknownValue {
		return false
	}
	return strings.Contains(n.EventKind, "payment") ||
		strings.HasPrefix(n.EventKind, "merchant_order") ||
		n.DetectedFormat == FormatV2
}

// stringValue coerces an id field to a string. The gateway sends ids both
// as JSON numbers and as numeric strings.
func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

func nestedID(v any) string {
	data, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return stringValue(data["id"])
}
