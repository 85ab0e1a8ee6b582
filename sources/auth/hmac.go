package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HMACSigner reproduces the HMAC-SHA1 signing pattern of spec.md §4.4:
// alphabetically sorted parameter values concatenated with a certificate
// hash, keyed by a constant "hard code", returned as uppercase hex.
// Grounded 1:1 on original_source/hainan_airlines/client.py's
// _make_sign.
type HMACSigner struct {
	HardCode        string
	CertificateHash string
}

// Sign computes the signature over merged params, sorted by key.
// Boolean values are stringified lowercase to match the Python
// reference's `str(val).lower()` branch.
func (s HMACSigner) Sign(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		switch v := params[k].(type) {
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case string:
			buf.WriteString(v)
		case int:
			buf.WriteString(strconv.Itoa(v))
		case int64:
			buf.WriteString(strconv.FormatInt(v, 10))
		case float64:
			buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		default:
			buf.WriteString(fmt.Sprintf("%v", v))
		}
	}
	buf.WriteString(s.CertificateHash)

	mac := hmac.New(sha1.New, []byte(s.HardCode))
	mac.Write([]byte(buf.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
