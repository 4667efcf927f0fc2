package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestAgentID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, int64(0), GetAgentID(ctx))

	ctx = WithAgentID(ctx, 42)
	assert.Equal(t, int64(42), GetAgentID(ctx))

	// wrong type stored under the key is ignored
	ctx = context.WithValue(context.Background(), AgentIDKey, "42")
	assert.Equal(t, int64(0), GetAgentID(ctx))
}

func TestWithAuth(t *testing.T) {
	type authValue struct{ id int64 }
	ctx := WithAuth(context.Background(), &authValue{id: 7})

	v, ok := ctx.Value(AuthKey).(*authValue)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v.id)
}
