// Package dispatch routes one client's inbound commands to the runtime and
// writes replies back to that client only.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/BryanFRD/admin-api/internal/metrics"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
	"github.com/BryanFRD/admin-api/internal/sysinfo"
)

// Responder writes one event to the requesting client.
type Responder interface {
	Send(ctx context.Context, ev protocol.Event) error
}

// Options tunes how commands are executed and answered.
type Options struct {
	// ErrorReplies sends a CommandError to the client for every command that
	// fails. When false, failures are only logged.
	ErrorReplies bool
	// CommandTimeout bounds each runtime call. Zero means no bound.
	CommandTimeout time.Duration
}

// Dispatcher executes decoded commands against the runtime and replies on
// the issuing session.
type Dispatcher struct {
	rt     runtime.Client
	sys    sysinfo.Reader
	opts   Options
	logger zerolog.Logger
}

// New returns a Dispatcher. A zero CommandTimeout leaves calls bounded only
// by the session context.
func New(rt runtime.Client, sys sysinfo.Reader, opts Options, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rt:     rt,
		sys:    sys,
		opts:   opts,
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch handles ev. The only error returned is a failure to write to
// out, which the caller should treat as the end of the session.
func (d *Dispatcher) Dispatch(ctx context.Context, ev protocol.Event, out Responder) error {
	switch e := ev.(type) {
	case protocol.StatusQuery:
		return d.status(ctx, out)
	case protocol.ContainerList:
		return d.list(ctx, out)
	case protocol.ContainerInspect:
		return d.inspect(ctx, e, out)
	case protocol.ContainerEvent:
		switch e.Kind {
		case protocol.TagContainerStart, protocol.TagContainerStop, protocol.TagContainerRestart:
			return d.control(ctx, e, out)
		}
	case protocol.SystemStatus:
		return d.system(ctx, out)
	}

	tag := protocol.Tag("")
	if ev != nil {
		tag = ev.Tag()
	}
	d.log(ctx).Debug().Str("type", string(tag)).Msg("ignoring non-command message")
	metrics.RecordCommand(string(tag), metrics.OutcomeRejected)
	return d.reply(ctx, out, protocol.CommandError{Command: tag, Message: "unsupported command"})
}

// Reject reports a chunk that could not be decoded.
func (d *Dispatcher) Reject(ctx context.Context, err error, out Responder) error {
	var tag protocol.Tag
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		tag = de.Tag
	}
	d.log(ctx).Warn().Err(err).Msg("dropping undecodable message")
	metrics.RecordCommand("invalid", metrics.OutcomeRejected)
	return d.reply(ctx, out, protocol.CommandError{Command: tag, Message: err.Error()})
}

func (d *Dispatcher) status(ctx context.Context, out Responder) error {
	callCtx, cancel := d.callContext(ctx)
	status := d.rt.Ping(callCtx)
	cancel()
	metrics.RecordCommand(string(protocol.TagStatusQuery), metrics.OutcomeOK)
	return out.Send(ctx, protocol.StatusUpdate{Status: int(status)})
}

func (d *Dispatcher) list(ctx context.Context, out Responder) error {
	callCtx, cancel := d.callContext(ctx)
	containers, err := d.rt.List(callCtx)
	cancel()
	if err != nil {
		d.log(ctx).Warn().Err(err).Msg("list containers failed")
		metrics.RecordCommand(string(protocol.TagContainerList), metrics.OutcomeFailed)
		if err := out.Send(ctx, protocol.StatusUpdate{Status: protocol.StatusUnreachable}); err != nil {
			return err
		}
		return out.Send(ctx, protocol.ContainerList{Containers: []protocol.ContainerSummary{}})
	}
	if containers == nil {
		containers = []protocol.ContainerSummary{}
	}
	metrics.RecordCommand(string(protocol.TagContainerList), metrics.OutcomeOK)
	return out.Send(ctx, protocol.ContainerList{Containers: containers})
}

func (d *Dispatcher) inspect(ctx context.Context, e protocol.ContainerInspect, out Responder) error {
	if e.ContainerID == "" {
		return d.fail(ctx, out, protocol.TagContainerInspect, "", errMissingID)
	}
	callCtx, cancel := d.callContext(ctx)
	detail, err := d.rt.Inspect(callCtx, e.ContainerID)
	cancel()
	if err != nil {
		return d.fail(ctx, out, protocol.TagContainerInspect, e.ContainerID, err)
	}
	metrics.RecordCommand(string(protocol.TagContainerInspect), metrics.OutcomeOK)
	return out.Send(ctx, protocol.ContainerInspect{ContainerID: e.ContainerID, Container: detail})
}

// control runs start/stop/restart. Success is not acknowledged: clients
// learn about it from the lifecycle event the runtime emits.
func (d *Dispatcher) control(ctx context.Context, e protocol.ContainerEvent, out Responder) error {
	if e.ContainerID == "" {
		return d.fail(ctx, out, e.Kind, "", errMissingID)
	}

	var op func(context.Context, string) error
	switch e.Kind {
	case protocol.TagContainerStart:
		op = d.rt.Start
	case protocol.TagContainerStop:
		op = d.rt.Stop
	default:
		op = d.rt.Restart
	}

	callCtx, cancel := d.callContext(ctx)
	err := op(callCtx, e.ContainerID)
	cancel()
	if err != nil {
		return d.fail(ctx, out, e.Kind, e.ContainerID, err)
	}
	d.log(ctx).Info().Str("command", string(e.Kind)).Str("container", e.ContainerID).Msg("command applied")
	metrics.RecordCommand(string(e.Kind), metrics.OutcomeOK)
	return nil
}

func (d *Dispatcher) system(ctx context.Context, out Responder) error {
	callCtx, cancel := d.callContext(ctx)
	snap, err := d.sys.Snapshot(callCtx)
	cancel()
	if err != nil {
		return d.fail(ctx, out, protocol.TagSystemStatus, "", err)
	}
	metrics.RecordCommand(string(protocol.TagSystemStatus), metrics.OutcomeOK)
	return out.Send(ctx, snap)
}

var errMissingID = errors.New("missing container id")

func (d *Dispatcher) fail(ctx context.Context, out Responder, tag protocol.Tag, id string, err error) error {
	d.log(ctx).Warn().Err(err).Str("command", string(tag)).Str("container", id).Msg("command failed")
	metrics.RecordCommand(string(tag), metrics.OutcomeFailed)
	return d.reply(ctx, out, protocol.CommandError{Command: tag, ContainerID: id, Message: err.Error()})
}

func (d *Dispatcher) reply(ctx context.Context, out Responder, ce protocol.CommandError) error {
	if !d.opts.ErrorReplies {
		return nil
	}
	return out.Send(ctx, ce)
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.CommandTimeout > 0 {
		return context.WithTimeout(ctx, d.opts.CommandTimeout)
	}
	return ctx, func() {}
}

// log prefers the session logger carried by ctx.
func (d *Dispatcher) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &d.logger
}
