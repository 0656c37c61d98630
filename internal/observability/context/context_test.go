package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithActor(ctx, ActorTypeOperator, "alice")
	ctx = WithClientIP(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, ActorTypeOperator, actorType)
	assert.Equal(t, "alice", actorID)
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
	assert.Empty(t, UserAgentFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(nil))
}
