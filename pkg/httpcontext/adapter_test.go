package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/storefront-guard/pkg/logger"
)

func TestAdapter_KeepsIncomingRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "req-7")
	rc.Request.Header.SetUserAgent("storefront/1.0")

	ctx, cancel := NewAdapter(context.Background(), time.Second).Attach(&rc)
	defer cancel()

	assert.Equal(t, "req-7", appLogger.RequestID(ctx))
	assert.Equal(t, "req-7", string(rc.Response.Header.Peek(HeaderRequestID)))
	assert.Equal(t, "storefront/1.0", ctx.Value(KeyUserAgent))
	_, ok := ctx.Deadline()
	assert.True(t, ok)
}

func TestAdapter_GeneratesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	ctx, cancel := NewAdapter(nil, 0).Attach(&rc)
	defer cancel()

	_, err := uuid.Parse(appLogger.RequestID(ctx))
	require.NoError(t, err)
}

func TestAdapter_BaseCancellation(t *testing.T) {
	base, stop := context.WithCancel(context.Background())
	var rc fasthttp.RequestCtx
	ctx, cancel := NewAdapter(base, time.Minute).Attach(&rc)
	defer cancel()

	stop()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
