package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		want     string
		ok       bool
	}{
		{"web push endpoint", "https://fcm.googleapis.com/fcm/send/dGVzdDp0b2tlbg", "dGVzdDp0b2tlbg", true},
		{"short fcm path", "https://fcm.googleapis.com/fcm/abc123", "abc123", true},
		{"token with colon", "https://fcm.googleapis.com/fcm/send/cX1:APA91bH-xyz", "cX1:APA91bH-xyz", true},
		{"query stripped", "https://fcm.googleapis.com/fcm/send/abc?x=1", "abc", true},
		{"raw legacy token", "cX1:APA91bH-raw", "cX1:APA91bH-raw", true},
		{"other provider url", "https://updates.push.services.mozilla.com/wpush/v2/gAAA", "https://updates.push.services.mozilla.com/wpush/v2/gAAA", true},
		{"trailing slash", "https://fcm.googleapis.com/fcm/send/", "", false},
		{"no token", "https://fcm.googleapis.com/fcm/send", "", false},
		{"empty", "  ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractToken(tc.endpoint)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
