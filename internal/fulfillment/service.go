// Package fulfillment confirms the orders of a group once it completes.
package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	kafkax "github.com/ariefcatur/go-groupbuy/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Confirmer interface {
	ConfirmGroup(ctx context.Context, productID string) (int, error)
}

type Deduper interface {
	MarkSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Tracker Confirmer
	Dedup   Deduper // optional
	Log     *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// HandleGroupCompleted is installed as the consumer handler for
// groupbuy.group.completed.
func (s *Service) HandleGroupCompleted(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.log().Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != groupbuy.EventGroupCompleted {
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	if s.Dedup != nil {
		first, err := s.Dedup.MarkSeen(ctx, env.EventID)
		if err != nil {
			s.log().Warn("dedup unavailable", zap.Error(err))
		} else if !first {
			return nil
		}
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[groupbuy.GroupCompletedPayload](env.Payload)
	if err != nil {
		s.log().Error("drop bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// 4) confirm; ConfirmGroup is idempotent so a redelivery is harmless
	n, err := s.Tracker.ConfirmGroup(ctx, p.ProductID)
	switch {
	case errors.Is(err, groupbuy.ErrProductNotFound):
		s.log().Info("product gone before confirmation", zap.String("product_id", p.ProductID))
		return nil
	case errors.Is(err, groupbuy.ErrInvalidTransition):
		// group reopened by an edit after the event was emitted
		s.log().Info("group no longer complete", zap.String("product_id", p.ProductID))
		return nil
	case err != nil:
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		return fmt.Errorf("confirm group %s: %w", p.ProductID, err)
	}

	s.log().Info("orders confirmed",
		zap.String("product_id", p.ProductID),
		zap.Int("orders", n),
		zap.String("trace_id", env.TraceID),
	)
	return nil
}
