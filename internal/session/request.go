package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/mimiclab/simlink/pkg/trace"
)

// replyTypeFor returns the message type that acknowledges a request of the
// given type. Most commands reply with "<type>_updated"; overrides in
// Config.ReplyTypes cover the ones that echo their own type.
func (s *Session) replyTypeFor(msgType string) string {
	if rt, ok := s.cfg.ReplyTypes[msgType]; ok {
		return rt
	}
	return msgType + cnst.ReplySuffix
}

// Request sends a message and waits for its reply. A reply matches when it
// carries the request's message_id or the expected reply type, whichever
// arrives first. Exactly one outcome is returned.
//
// A timeout means the request outcome is unknown: the backend may still
// have applied the command.
func (s *Session) Request(ctx context.Context, msg *Message, timeout time.Duration) (*Message, error) {
	if timeout <= 0 {
		timeout = s.cfg.RequestTimeout
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	replyType := s.replyTypeFor(msg.Type)

	scope := trace.Tracer("simlink/session").Start(ctx, "session.request").WithAttrs(
		attribute.String("message.type", msg.Type),
		attribute.String("message.id", msg.MessageID),
	)
	ctx = scope.Ctx
	defer scope.End()

	s.m.RequestStart()
	start := time.Now()

	replyCh := make(chan *Message, 1)
	off := s.OnMessage(func(in *Message) {
		if in.MessageID == msg.MessageID || in.Type == replyType {
			select {
			case replyCh <- in:
			default:
			}
		}
	})
	defer off()

	s.Send(msg)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		s.m.RequestDone(msg.Type, "ok", start)
		return reply, nil
	case <-timer.C:
		s.m.RequestDone(msg.Type, "timeout", start)
		err := fmt.Errorf("%w: no reply to %s within %s (outcome unknown)",
			cnst.ErrRequestTimeout, msg.Type, timeout)
		scope.Span.SetStatus(codes.Error, err.Error())
		return nil, err
	case <-ctx.Done():
		s.m.RequestDone(msg.Type, "canceled", start)
		scope.Span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	}
}
