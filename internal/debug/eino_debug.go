package debug

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/devops"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
)

// EinoDebugger starts the eino visual debug server. Graphs compiled after
// Initialize show up in its UI, so it must run before the app is built.
type EinoDebugger struct {
	config *config.Config
	once   sync.Once
	err    error

	init func(ctx context.Context) error
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	return &EinoDebugger{
		config: cfg,
		init:   func(ctx context.Context) error { return devops.Init(ctx) },
	}
}

func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}
	d.once.Do(func() {
		log.WithField("port", d.config.EinoDebugPort).Info("[EinoDebug] initializing visual debug plugin")
		if err := d.init(ctx); err != nil {
			d.err = fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
			return
		}
		log.Infof("[EinoDebug] debug server at %s, the analysis workflow and the assistant graph are inspectable there", d.GetDebugURL())
	})
	return d.err
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config != nil && d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.IsEnabled() {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
