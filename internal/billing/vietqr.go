package billing

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// VietQR payloads follow the EMVCo merchant-presented QR layout used by
// NAPAS bank transfers: ID, two-digit length, value; CRC last.
const (
	napasGUID        = "A000000727"
	napasTransferSvc = "QRIBFTTA"
	currencyVND      = "704"
	countryVN        = "VN"
	maxAddInfoLength = 25
)

var ErrTransferAccount = errors.New("bank transfer account is not configured")

type TransferAccount struct {
	BankBIN     string
	AccountNo   string
	AccountName string
}

func (a TransferAccount) Configured() bool {
	return a.BankBIN != "" && a.AccountNo != ""
}

// VietQRPayload builds the transfer QR content for amount. The amount is
// expected to already be rounded up to whole dong.
func VietQRPayload(acct TransferAccount, amount decimal.Decimal, addInfo string) (string, error) {
	if !acct.Configured() {
		return "", ErrTransferAccount
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	beneficiary := tlv("00", acct.BankBIN) + tlv("01", acct.AccountNo)
	merchant := tlv("00", napasGUID) + tlv("01", beneficiary) + tlv("02", napasTransferSvc)

	var b strings.Builder
	b.WriteString(tlv("00", "01"))
	b.WriteString(tlv("01", "12"))
	b.WriteString(tlv("38", merchant))
	b.WriteString(tlv("53", currencyVND))
	b.WriteString(tlv("54", amount.Ceil().String()))
	b.WriteString(tlv("58", countryVN))
	if name := asciiUpper(acct.AccountName); name != "" {
		b.WriteString(tlv("59", name))
	}
	if info := asciiUpper(addInfo); info != "" {
		if len(info) > maxAddInfoLength {
			info = info[:maxAddInfoLength]
		}
		b.WriteString(tlv("62", tlv("08", info)))
	}
	b.WriteString("6304")
	b.WriteString(fmt.Sprintf("%04X", CRC16CCITT([]byte(b.String()))))
	return b.String(), nil
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// asciiUpper folds Vietnamese diacritics and keeps letters, digits and
// spaces; banking apps reject the rest.
func asciiUpper(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)

	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ') {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CRC16CCITT is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the checksum
// EMVCo QR payloads end with.
func CRC16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
