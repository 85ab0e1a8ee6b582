package auth

import (
	"strings"

	"github.com/google/uuid"
)

// DeviceID generates a UUID-v4 client identifier injected as a custom
// header on each call (spec.md §4.4 "UUID-v4 client IDs injected as
// custom headers"). Ground: original_source/hainan_airlines/client.py
// _make_device_id, which uses uuid.uuid4().hex.upper().
func DeviceID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}
