package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced operation.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"

	SpanOperationMsgPublish SpanOperation = "messaging.publish"
	SpanOperationMsgProcess SpanOperation = "messaging.process"
)

// StartDatabaseSpan opens a client span for a document store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	o := &databaseSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("db.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(o)
	}
	name := fmt.Sprintf("DB %s", operation)
	if o.collection != "" {
		name = fmt.Sprintf("DB %s %s", operation, o.collection)
	}
	ctx, span := otel.Tracer("database").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(o.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	attributes []attribute.KeyValue
	collection string
}

// WithDBSystem sets db.system, e.g. "mongodb".
func WithDBSystem(system string) DatabaseSpanOption {
	return func(o *databaseSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("db.system", system))
	}
}

// WithDBCollection sets the collection the operation touches.
func WithDBCollection(collection string) DatabaseSpanOption {
	return func(o *databaseSpanOptions) {
		o.collection = collection
		o.attributes = append(o.attributes, attribute.String("db.collection", collection))
	}
}

// StartMessagingSpan opens a producer span for publish and a consumer span for process.
func StartMessagingSpan(ctx context.Context, operation SpanOperation, opts ...MessagingSpanOption) (context.Context, trace.Span) {
	o := &messagingSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("messaging.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(o)
	}
	name := fmt.Sprintf("MSG %s", operation)
	if o.destination != "" {
		name = fmt.Sprintf("MSG %s %s", operation, o.destination)
	}
	kind := trace.SpanKindConsumer
	if operation == SpanOperationMsgPublish {
		kind = trace.SpanKindProducer
	}
	ctx, span := otel.Tracer("messaging").Start(ctx, name, trace.WithSpanKind(kind))
	span.SetAttributes(o.attributes...)
	return ctx, span
}

// MessagingSpanOption configures a messaging span.
type MessagingSpanOption func(*messagingSpanOptions)

type messagingSpanOptions struct {
	attributes  []attribute.KeyValue
	destination string
}

// WithMessagingSystem sets messaging.system.
func WithMessagingSystem(system string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("messaging.system", system))
	}
}

// WithMessagingDestination sets the queue name.
func WithMessagingDestination(destination string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.destination = destination
		o.attributes = append(o.attributes, attribute.String("messaging.destination", destination))
	}
}

// WithMessagingMessageID sets the job id.
func WithMessagingMessageID(id string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("messaging.message_id", id))
	}
}

// WithMessagingPayloadSize sets the payload size in bytes.
func WithMessagingPayloadSize(size int) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.Int("messaging.message_payload_size_bytes", size))
	}
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess marks span as OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// End finishes span, recording err when non-nil and success otherwise.
func End(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
