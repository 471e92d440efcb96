package graph

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
)

// ProgressEvent is pushed on LoggerCallback.Out as stages start and finish.
type ProgressEvent struct {
	Stage string
	Done  bool
	Err   error
}

var stageNames = map[string]bool{
	consts.ScrapeStage:       true,
	consts.PainAnalysisStage: true,
	consts.RecommendStage:    true,
	consts.ReportStage:       true,
}

// LoggerCallback logs graph activity with logrus and optionally reports stage
// progress to a listener. Sends on Out never block.
type LoggerCallback struct {
	Out chan<- ProgressEvent
}

var _ callbacks.Handler = (*LoggerCallback)(nil)

func (cb *LoggerCallback) push(ev ProgressEvent) {
	if cb.Out == nil || !stageNames[ev.Stage] {
		return
	}
	select {
	case cb.Out <- ev:
	default:
	}
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info == nil {
		return ctx
	}
	log.WithFields(log.Fields{
		"node":      info.Name,
		"component": info.Component,
		"type":      info.Type,
	}).Debug("node start")
	cb.push(ProgressEvent{Stage: info.Name})
	return ctx
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil {
		return ctx
	}
	log.WithField("node", info.Name).Debug("node end")
	cb.push(ProgressEvent{Stage: info.Name, Done: true})
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	log.WithError(err).WithField("node", name).Warn("node error")
	cb.push(ProgressEvent{Stage: name, Done: true, Err: err})
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	go func() {
		defer output.Close() // remember to close the stream in defer
		defer func() {
			if err := recover(); err != nil {
				log.WithField("panic", err).Error("stream callback recovered")
			}
		}()
		for {
			if _, err := output.Recv(); err != nil {
				return
			}
		}
	}()
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	defer input.Close()
	return ctx
}
