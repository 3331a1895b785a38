package context

import (
	"context"

	"packtrack/infrastructure/scansession"
)

type scanSessionKey struct{}

func NewContextWithScanSession(ctx context.Context, s *scansession.Session) context.Context {
	return context.WithValue(ctx, scanSessionKey{}, s)
}

func GetScanSessionFromContext(ctx context.Context) (*scansession.Session, bool) {
	s, ok := ctx.Value(scanSessionKey{}).(*scansession.Session)
	return s, ok && s != nil
}
