// Package gateway integrates the VNPay hosted-checkout gateway: building
// redirect URLs and verifying the signed return/IPN callbacks.  Amounts
// cross the wire multiplied by 100 per the VNPay convention; everything
// in this codebase stays in plain VND.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidSignature is returned when a callback's vnp_SecureHash does
// not match the payload.  Such callbacks must be rejected without touching
// payment state.
var ErrInvalidSignature = errors.New("vnpay: invalid signature")

const (
	version      = "2.1.0"
	commandPay   = "pay"
	currencyVND  = "VND"
	orderType    = "other"
	dateLayout   = "20060102150405"
	successCode  = "00"
	expireWindow = 15 * time.Minute
)

// Config carries the merchant credentials and endpoints.  All four fields
// are required.
type Config struct {
	TMNCode    string // merchant terminal code
	HashSecret string // HMAC-SHA512 key shared with VNPay
	PaymentURL string // hosted checkout entry point
	ReturnURL  string // where VNPay redirects the customer afterwards
}

// VNPay builds payment URLs and verifies callbacks for one merchant.
type VNPay struct {
	cfg Config
}

// New returns a VNPay gateway for the given merchant config.
func New(cfg Config) *VNPay { return &VNPay{cfg: cfg} }

// BuildParams is one checkout redirect to construct.
type BuildParams struct {
	OrderID   string    // becomes vnp_TxnRef, must be unique per payment
	Amount    int64     // VND
	OrderInfo string    // free text, diacritics are folded to ASCII
	ClientIP  string    // customer's IP as seen by us
	Locale    string    // "vn" or "en"; defaults to "vn"
	BankCode  string    // optional direct-bank preselection
	CreatedAt time.Time // stamps vnp_CreateDate and the expiry window
}

// BuildPaymentURL returns the signed URL the customer is redirected to.
// VNPay signs the URL-encoded query in key order, so the hash input and
// the final query string are built from the same canonical form.
func (g *VNPay) BuildPaymentURL(p BuildParams) (string, error) {
	if p.OrderID == "" || p.Amount <= 0 {
		return "", fmt.Errorf("vnpay: order id and positive amount are required")
	}
	locale := p.Locale
	if locale == "" {
		locale = "vn"
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    commandPay,
		"vnp_TmnCode":    g.cfg.TMNCode,
		"vnp_Amount":     strconv.FormatInt(p.Amount*100, 10),
		"vnp_CurrCode":   currencyVND,
		"vnp_TxnRef":     p.OrderID,
		"vnp_OrderInfo":  foldASCII(p.OrderInfo),
		"vnp_OrderType":  orderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     p.ClientIP,
		"vnp_CreateDate": created.Format(dateLayout),
		"vnp_ExpireDate": created.Add(expireWindow).Format(dateLayout),
	}
	if p.BankCode != "" {
		params["vnp_BankCode"] = p.BankCode
	}

	canonical := canonicalQuery(params)
	signature := g.sign(canonical)
	return g.cfg.PaymentURL + "?" + canonical + "&vnp_SecureHash=" + signature, nil
}

// CallbackResult is the decoded outcome of a verified return or IPN
// callback.
type CallbackResult struct {
	OrderID       string // vnp_TxnRef
	TransactionNo string // VNPay-side transaction number
	BankCode      string
	CardType      string
	PayDate       string // VNPay local time, yyyyMMddHHmmss
	ResponseCode  string
	Amount        int64 // VND, already divided back by 100
	Success       bool  // ResponseCode == "00"
	Message       string
}

// VerifyCallback checks the signature of callback query parameters and
// decodes them.  Returns ErrInvalidSignature on any mismatch, including a
// missing hash.
func (g *VNPay) VerifyCallback(query url.Values) (*CallbackResult, error) {
	received := query.Get("vnp_SecureHash")
	if received == "" {
		return nil, ErrInvalidSignature
	}
	params := make(map[string]string)
	for key := range query {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if strings.HasPrefix(key, "vnp_") {
			params[key] = query.Get(key)
		}
	}
	expected := g.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	amount, err := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("vnpay: bad amount %q", query.Get("vnp_Amount"))
	}
	code := query.Get("vnp_ResponseCode")
	return &CallbackResult{
		OrderID:       query.Get("vnp_TxnRef"),
		TransactionNo: query.Get("vnp_TransactionNo"),
		BankCode:      query.Get("vnp_BankCode"),
		CardType:      query.Get("vnp_CardType"),
		PayDate:       query.Get("vnp_PayDate"),
		ResponseCode:  code,
		Amount:        amount / 100,
		Success:       code == successCode,
		Message:       responseMessage(code),
	}, nil
}

// canonicalQuery encodes params as VNPay hashes them: keys sorted, values
// URL-encoded with spaces as '+'.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func (g *VNPay) sign(canonical string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// responseMessage maps the codes VNPay actually sends in practice; the
// rest collapse to a generic failure.
func responseMessage(code string) string {
	switch code {
	case "00":
		return "Giao dich thanh cong"
	case "07":
		return "Giao dich bi nghi ngo gian lan"
	case "09":
		return "The chua dang ky Internet Banking"
	case "11":
		return "Het han cho thanh toan"
	case "12":
		return "The bi khoa"
	case "13":
		return "Sai mat khau OTP"
	case "24":
		return "Khach hang huy giao dich"
	case "51":
		return "Tai khoan khong du so du"
	case "65":
		return "Vuot qua han muc giao dich trong ngay"
	case "75":
		return "Ngan hang dang bao tri"
	case "79":
		return "Sai mat khau thanh toan qua so lan quy dinh"
	default:
		return "Giao dich that bai"
	}
}

// foldASCII strips diacritics from order descriptions, which VNPay
// requires to be plain ASCII.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	replacer := strings.NewReplacer("đ", "d", "Đ", "D")
	return replacer.Replace(folded)
}
