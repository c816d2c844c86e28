package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_SearchKeyNormalizesQuery(t *testing.T) {
	c := NewCache(&Client{prefix: "faqrag"})

	a := c.SearchKey("__default__", 17, "How do I  verify my account?")
	b := c.SearchKey("__default__", 17, "  how do i verify my ACCOUNT? ")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^faqrag:search:__default__:17:[0-9a-f]{32}$`, a)

	assert.NotEqual(t, a, c.SearchKey("__default__", 5, "How do I verify my account?"))
	assert.NotEqual(t, a, c.SearchKey("staging", 17, "How do I verify my account?"))
}

func TestClient_KeyWithoutPrefix(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "ratelimit:chat:1.2.3.4", c.Key("ratelimit", "chat", "1.2.3.4"))

	l := NewRateLimiter(&Client{prefix: "faqrag"})
	assert.Equal(t, "faqrag:ratelimit:chat:1.2.3.4", l.BuildRateLimitKey("1.2.3.4", "chat"))
}
