package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"carsync/internal/models"
)

// ErrUnknownControl is returned for control messages with an unknown type.
var ErrUnknownControl = errors.New("unknown control message type")

// Version returns the versioned base cache name.
func (r *Router) Version() string {
	return r.cfg.BaseName
}

// Control handles a page-to-worker control message and returns the reply.
func (r *Router) Control(ctx context.Context, msg models.ControlMessage) (any, error) {
	switch msg.Type {
	case models.ControlSkipWaiting:
		if err := r.SkipWaiting(ctx); err != nil {
			return nil, err
		}
		return models.SuccessResponse{Success: true}, nil

	case models.ControlGetVersion:
		return models.VersionResponse{
			Version:   r.cfg.BaseName,
			Timestamp: r.now().UnixMilli(),
		}, nil

	case models.ControlClearCache:
		if err := r.registry.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear caches: %w", err)
		}
		log.Println("Worker: all caches cleared")
		return models.SuccessResponse{Success: true}, nil

	default:
		slog.Warn("unknown control message type", "type", msg.Type)
		return nil, fmt.Errorf("%w: %q", ErrUnknownControl, msg.Type)
	}
}
