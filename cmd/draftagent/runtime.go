package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/tbxark/draftagent/agent"
	"github.com/tbxark/draftagent/classify"
	"github.com/tbxark/draftagent/config"
	"github.com/tbxark/draftagent/generate"
	"github.com/tbxark/draftagent/intent"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/retrieve"
	"github.com/tbxark/draftagent/validate"
)

// runtime holds everything a command needs, built from one Config.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	library    *retrieve.SQLiteLibrary
	sessions   *agent.SQLiteStateReadWriter
	controller *agent.Controller
	closers    []io.Closer
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	if cfg.Registry.Path == "" {
		return reg, nil
	}
	defs, err := registry.LoadFile(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	if err := reg.Add(defs...); err != nil {
		return nil, fmt.Errorf("add document types: %w", err)
	}
	return reg, nil
}

// newRuntime builds the runtime. Anything opened before a failure is closed again.
func newRuntime(ctx context.Context, cfg *config.Config) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logger: newLogger(cfg)}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	if rt.registry, err = loadRegistry(cfg); err != nil {
		return nil, err
	}

	machineOpts := []agent.MachineOption{
		agent.WithConfidenceThreshold(cfg.Dialogue.ConfidenceThreshold),
		agent.WithHistoryTrimmer(agent.KeepLastNTrimmer{N: cfg.Dialogue.HistoryTurns}),
		agent.WithMachineLogger(rt.logger),
	}
	if cfg.Library.Path != "" {
		rt.library, err = retrieve.OpenSQLiteLibrary(cfg.Library.Path)
		if err != nil {
			return nil, fmt.Errorf("open reference library: %w", err)
		}
		rt.closers = append(rt.closers, rt.library)
		machineOpts = append(machineOpts, agent.WithRetriever(
			retrieve.NewMultiRetriever(retrieve.NewRegistryRetriever(rt.registry), rt.library),
		))
	}

	controllerOpts := []agent.ControllerOption{
		agent.WithMaxSteps(cfg.Dialogue.MaxSteps),
		agent.WithControllerLogger(rt.logger),
	}
	if cfg.Store.Driver == config.StoreSQLite {
		rt.sessions, err = agent.OpenSQLiteStateReadWriter(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		rt.closers = append(rt.closers, rt.sessions)
		controllerOpts = append(controllerOpts, agent.WithStateReadWriter(rt.sessions))
	} else if cfg.Store.MaxSessions > 0 {
		controllerOpts = append(controllerOpts, agent.WithStateReadWriter(agent.NewMemoryStateReadWriter(agent.WithCapacity(cfg.Store.MaxSessions))))
	}

	var machine *agent.Machine
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		cm, cErr := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
		if cErr != nil {
			return nil, fmt.Errorf("create chat model: %w", cErr)
		}
		if machine, err = agent.NewToolBasedMachine(rt.registry, cm, cfg.Dialogue.Lang, machineOpts...); err != nil {
			return nil, err
		}
		recognizer, rErr := agent.NewToolBasedIntentRecognizer(cm)
		if rErr != nil {
			return nil, rErr
		}
		controllerOpts = append(controllerOpts, agent.WithIntentRecognizer(recognizer))
	case config.ProviderOpenAISDK:
		completer, cErr := generate.NewOpenAICompleter(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
		if cErr != nil {
			return nil, cErr
		}
		machine, err = agent.NewMachine(
			rt.registry,
			classify.NewLocalClassifier(rt.registry),
			validate.NewLocalValidator(),
			generate.NewFailbackGenerator(generate.NewCompletionGenerator(completer), generate.NewTemplateGenerator()),
			machineOpts...,
		)
		if err != nil {
			return nil, err
		}
		controllerOpts = append(controllerOpts, agent.WithIntentRecognizer(intent.NewLocalIntentRecognizer()))
	default:
		if machine, err = agent.NewLocalMachine(rt.registry, machineOpts...); err != nil {
			return nil, err
		}
		controllerOpts = append(controllerOpts, agent.WithIntentRecognizer(intent.NewLocalIntentRecognizer()))
	}

	if rt.controller, err = agent.NewController(machine, controllerOpts...); err != nil {
		return nil, err
	}
	rt.logger.Debug("Runtime ready", "provider", cfg.LLM.Provider, "store", cfg.Store.Driver, "types", len(rt.registry.Types()))
	return rt, nil
}
