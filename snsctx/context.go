package snsctx

import (
	"context"
	"encoding/hex"
	"log/slog"
)

type ctxIndex int

const ctxIndexVerbose ctxIndex = iota

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// DumpTraffic logs a hex dump of bus traffic when ctx is verbose.
func DumpTraffic(ctx context.Context, msg string, address byte, data []byte) {
	if !IsVerbose(ctx) {
		return
	}
	slog.Debug(msg, "addr", address, "data", hex.EncodeToString(data))
}
