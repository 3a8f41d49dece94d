// Package pixcode builds deterministic scan-to-pay payloads in the EMV
// tag/length/value format used by the Brazilian PIX copy-and-paste code.
// The codec is pure: the same beneficiary and amount always produce the
// same byte-for-byte payload, so a QR renderer and a human-copyable
// string can never disagree.
package pixcode

import (
	"fmt"
	"math"
	"strconv"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// EMV tags used by the payload. Tag 26 nests the merchant account
	// information group, which itself carries the scheme GUI (sub-tag 00)
	// and the beneficiary key (sub-tag 01).
	tagPayloadFormat   = "00"
	tagMerchantAccount = "26"
	tagCategoryCode    = "52"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountryCode     = "58"
	tagMerchantName    = "59"
	tagCRC             = "63"

	schemeGUI = "BR.GOV.BCB.PIX"

	payloadFormatValue = "01"
	categoryCodeValue  = "0000"
	currencyValue      = "986" // ISO 4217 numeric, BRL
	countryCodeValue   = "BR"
)

// Payload holds the inputs of a scan-to-pay code. The zero value is not
// usable; BeneficiaryKey must be set.
type Payload struct {
	BeneficiaryKey  string
	BeneficiaryName string
	Amount          string
}

// Generate assembles the full payload including the trailing CRC field.
func (p Payload) Generate() string {
	name := NormalizeName(p.BeneficiaryName)
	amount := NormalizeAmount(p.Amount)

	account := field("00", schemeGUI) + field("01", p.BeneficiaryKey)

	payload := field(tagPayloadFormat, payloadFormatValue) +
		field(tagMerchantAccount, account) +
		field(tagCategoryCode, categoryCodeValue) +
		field(tagCurrency, currencyValue) +
		field(tagAmount, amount) +
		field(tagCountryCode, countryCodeValue) +
		field(tagMerchantName, name) +
		tagCRC + "04"

	return payload + Checksum(payload)
}

// field serializes a single tag/value pair as tag + zero-padded
// two-digit length + value. Lengths are computed on the normalized value.
func field(tag, value string) string {
	return tag + fmt.Sprintf("%02d", len(value)) + value
}

// NormalizeName strips diacritics and removes every character outside
// [A-Za-z0-9], matching what payment apps accept for the merchant name
// field.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	out := make([]byte, 0, len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// NormalizeAmount rounds the amount up to the nearest whole unit and
// formats it with exactly two decimal digits. Non-numeric input yields
// "0.00".
func NormalizeAmount(amount string) string {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return "0.00"
	}
	return strconv.FormatFloat(math.Ceil(value), 'f', 2, 64)
}

// Checksum computes the CRC-16/CCITT-FALSE of the payload: polynomial
// 0x1021, initial register 0xFFFF, each character's low byte processed
// MSB-first, no final XOR. Rendered as four uppercase hex digits.
func Checksum(payload string) string {
	const polynomial = 0x1021
	crc := uint16(0xFFFF)

	for i := 0; i < len(payload); i++ {
		crc ^= uint16(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
