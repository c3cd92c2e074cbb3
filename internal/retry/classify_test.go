package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sparql-agent-go/pkg/types"
)

func TestClassify_TimeoutMessage(t *testing.T) {
	ctx := Classify("the query timed out after 30s", 0)
	assert.Equal(t, types.CategoryTimeout, ctx.Category)
	assert.Equal(t, types.RetryExponentialBackoff, ctx.RetryStrategy)
}

func TestClassify_RateLimitByStatus(t *testing.T) {
	ctx := Classify("too many requests", 429)
	assert.Equal(t, types.CategoryRateLimit, ctx.Category)
	assert.Equal(t, types.RetryLinearBackoff, ctx.RetryStrategy)
}

func TestClassify_AuthenticationIsNotRecoverable(t *testing.T) {
	ctx := Classify("authentication failed: invalid credentials", 401)
	assert.False(t, ctx.Recoverable)
	assert.Equal(t, types.RetryNone, ctx.RetryStrategy)
}

func TestClassify_UnmatchedFallsThroughToUnknown(t *testing.T) {
	ctx := Classify("something bizarre happened", 0)
	assert.Equal(t, types.CategoryUnknown, ctx.Category)
}

func TestClassify_ExtractsSuggestedLimitFromMessage(t *testing.T) {
	ctx := Classify("query exceeded memory limit, current limit 200", 0)
	assert.Equal(t, types.CategoryMemory, ctx.Category)
	require := ctx.Metadata["suggested_limit"]
	assert.Equal(t, 100, require)
}
