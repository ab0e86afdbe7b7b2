package presence

import "context"

// Presence mirrors which node holds each user's socket.
type Presence interface {
	Register(ctx context.Context, userID int64) error
	Deregister(ctx context.Context, userID int64) error
	Lookup(ctx context.Context, userID int64) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Noop is used when Redis is disabled.
type Noop struct{}

func (Noop) Register(ctx context.Context, userID int64) error {
	return nil
}

func (Noop) Deregister(ctx context.Context, userID int64) error {
	return nil
}

func (Noop) Lookup(ctx context.Context, userID int64) (string, error) {
	return "", ErrNotPresent
}

func (Noop) StartHeartbeat(ctx context.Context) error {
	return nil
}

func (Noop) StopHeartbeat() {}

func (Noop) Close() error {
	return nil
}
