// Package logctx enriches slog records with client, job and tool call
// correlation data carried on the context.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if cd, ok := ctx.Value(clientDataKey{}).(*ClientData); ok {
		r.AddAttrs(slog.Group("client",
			slog.String("name", cd.Name),
			slog.String("id", cd.ID),
		))
	}

	if jd, ok := ctx.Value(jobDataKey{}).(*JobData); ok {
		r.AddAttrs(slog.Group("job",
			slog.String("id", jd.JobID),
			slog.String("op", jd.Operation),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		r.AddAttrs(slog.Group("tool",
			slog.String("name", td.ToolName),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type clientDataKey struct{}

type ClientData struct {
	Name string
	ID   string
}

func WithClientData(ctx context.Context, data *ClientData) context.Context {
	return context.WithValue(ctx, clientDataKey{}, data)
}

type jobDataKey struct{}

type JobData struct {
	JobID     string
	Operation string
}

func WithJobData(ctx context.Context, data *JobData) context.Context {
	return context.WithValue(ctx, jobDataKey{}, data)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}
