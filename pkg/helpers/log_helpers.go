package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// ZerologAdapter lets watermill log through zerolog. Watermill's info
// output is per message, so it goes to debug.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerologAdapter(logger zerolog.Logger) ZerologAdapter {
	return ZerologAdapter{logger: logger}
}

func (z ZerologAdapter) log(e *zerolog.Event, msg string, fields watermill.LogFields) {
	e.Fields(map[string]interface{}(fields)).Msg(msg)
}

func (z ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.log(z.logger.Error().Err(err), msg, fields)
}

func (z ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	z.log(z.logger.Debug(), msg, fields)
}

func (z ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	z.log(z.logger.Debug(), msg, fields)
}

func (z ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	z.log(z.logger.Trace(), msg, fields)
}

func (z ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return ZerologAdapter{logger: z.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}

var _ watermill.LoggerAdapter = ZerologAdapter{}

// RequestIDMetadataKey tags every published message with the completion
// request it belongs to.
const RequestIDMetadataKey = "request_id"

type requestIDKey struct{}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// RequestIDPublisher copies the request id of each message context into its
// metadata. Messages outside of a request, like notifications, get a
// "local_" id so they can still be told apart in logs.
type RequestIDPublisher struct {
	message.Publisher
}

func (p RequestIDPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.Metadata.Get(RequestIDMetadataKey) != "" {
			continue
		}
		id, ok := RequestIDFromContext(msg.Context())
		if !ok {
			id = "local_" + shortuuid.New()
		}
		msg.Metadata.Set(RequestIDMetadataKey, id)
	}
	return p.Publisher.Publish(topic, messages...)
}
