package main

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/push"
)

func TestFakeSubscriptions(t *testing.T) {
	subs := fakeSubscriptions(gofakeit.New(42), 20, 3)
	require.NotEmpty(t, subs)

	perRecipient := map[string]int{}
	endpoints := map[string]bool{}
	for i, s := range subs {
		perRecipient[s.RecipientID]++
		assert.False(t, endpoints[s.Endpoint], "duplicate endpoint")
		endpoints[s.Endpoint] = true

		tok, ok := push.ExtractToken(s.Endpoint)
		require.True(t, ok)
		assert.NotEmpty(t, tok)
		if i%10 == 9 {
			assert.False(t, strings.HasPrefix(s.Endpoint, fcmSendPrefix))
		} else {
			assert.Equal(t, fcmSendPrefix+tok, s.Endpoint)
		}
	}
	assert.Len(t, perRecipient, 20)
	for _, n := range perRecipient {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 3)
	}
}
