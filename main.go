// opschat - a terminal chat panel for infrastructure agents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/opschat/internal/agents"
	"github.com/jeranaias/opschat/internal/chat"
	"github.com/jeranaias/opschat/internal/config"
	"github.com/jeranaias/opschat/internal/conn"
	"github.com/jeranaias/opschat/internal/history"
	"github.com/jeranaias/opschat/internal/model"
	chatui "github.com/jeranaias/opschat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async event delivery
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

// send forwards an event to the running program, if any.
func send(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	configPath := flag.String("config", "", "config file path")
	resume := flag.String("chat", "", "resume a saved conversation by id")
	list := flag.Bool("list", false, "list saved conversations and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("opschat %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		if err := listChats(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *resume); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from the default location or an
// explicit path.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// listChats prints the saved conversation list.
func listChats(cfg *config.Config) error {
	if cfg.Server.HistoryURL == "" {
		return fmt.Errorf("server.history_url is not configured")
	}
	chats, err := history.NewClient(cfg.Server.HistoryURL).Chats(context.Background())
	if err != nil {
		return err
	}
	for _, c := range chats {
		fmt.Printf("%s  %s\n", c.ID, c.Title())
	}
	return nil
}

// run wires the engine together and drives the panel until exit.
func run(cfg *config.Config, resume string) error {
	catalogPath, err := cfg.CatalogPath()
	if err != nil {
		return err
	}
	registry, err := agents.Load(catalogPath)
	if err != nil {
		return err
	}
	defer registry.Close()

	if cfg.Agents.Watch {
		if err := registry.Watch(func() { send(chatui.Refresh{}) }); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: agent catalog watch disabled: %v\n", err)
		}
	}

	// The channel dispatches into the engine; the engine pushes updates
	// into the program. The engine variable is bound before Connect runs,
	// so the callbacks never observe it nil.
	var engine *chat.Chat
	manager := conn.NewManager(cfg.Server.SocketURL, conn.Callbacks{
		OnOpen:  func() { engine.HandleOpen() },
		OnFrame: func(data string) { engine.HandleFrame(data) },
		OnClose: func(deliberate bool, err error) { engine.HandleClose(deliberate, err) },
	})

	engine = chat.New(resume, manager, chat.NewSession(), chat.Options{
		RecommendAfter: cfg.Agents.RecommendAfter,
		PhaseDebounce:  cfg.Chat.PhaseDebounce(),
		OnUpdate:       func() { send(chatui.Refresh{}) },
		OnPhase:        func(p model.Phase) { send(chatui.PhaseChanged{Phase: p}) },
		ResolveAgent:   registry.Lookup,
	})
	defer engine.Close()

	if cfg.Agents.DefaultAgent != "" {
		engine.SelectAgent(cfg.Agents.DefaultAgent)
	}

	// A resumed conversation is seeded from history before the channel
	// opens, so the panel shows the transcript immediately.
	if resume != "" && cfg.Server.HistoryURL != "" {
		recs, err := history.NewClient(cfg.Server.HistoryURL).Messages(context.Background(), resume)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load history: %v\n", err)
		} else {
			engine.Load(history.Replay(recs))
		}
	}

	p := tea.NewProgram(
		chatui.New(engine, manager, registry, cfg.UI),
		tea.WithAltScreen(),
	)
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Chat.ConnectTimeout())
		defer cancel()
		if err := manager.Connect(ctx, resume); err != nil {
			send(chatui.Refresh{})
		}
	}()

	_, err = p.Run()
	manager.Disconnect()
	return err
}
