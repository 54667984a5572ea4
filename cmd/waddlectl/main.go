package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/waddle-social/app/internal/bridge"
	"github.com/waddle-social/app/internal/bridge/engine"
	"github.com/waddle-social/app/internal/bridge/native"
	"github.com/waddle-social/app/internal/bridgerpc"
	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/chat"
	"github.com/waddle-social/app/internal/config"
	"github.com/waddle-social/app/internal/plugin"
	"github.com/waddle-social/app/internal/session"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"github.com/waddle-social/app/internal/theme"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	logger := zap.NewNop()
	b := newBridge(sessionName, logger)
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, b, *jsonFlag)
	case "roster":
		cmdRoster(ctx, b, *jsonFlag)
	case "history":
		cmdHistory(ctx, b, args[1:], *jsonFlag)
	case "send":
		cmdSend(ctx, b, args[1:], *jsonFlag)
	case "presence":
		cmdPresence(ctx, b, args[1:])
	case "join":
		cmdJoin(ctx, b, args[1:])
	case "leave":
		cmdLeave(ctx, b, args[1:])
	case "plugins":
		cmdPlugins(ctx, b, args[1:], *jsonFlag)
	case "config":
		cmdConfig(ctx, b, *jsonFlag)
	case "theme":
		cmdTheme(args[1:], *jsonFlag)
	case "listen":
		cmdListen(b, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// newBridge builds the facade over backend detection: a live daemon
// socket means the native backend, otherwise an in-process engine over
// the session's own store.
func newBridge(sessionName string, logger *zap.Logger) *bridge.Bridge {
	socketPath := session.SocketPath(sessionName)

	nativeDetect := func(context.Context) (bridge.Backend, error) {
		return native.Dial(socketPath, logger)
	}
	engineDetect := func(context.Context) (bridge.Backend, error) {
		if err := session.EnsureDir(sessionName); err != nil {
			return nil, err
		}
		db, err := store.Open(session.DBPath(sessionName))
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		cfg := config.LoadOrDefault(session.ConfigPath())
		selfJID := cfg.JID
		if selfJID == "" {
			selfJID = sessionName + "@localhost"
		}
		evb := bus.New()
		machine := status.NewMachine(evb)
		_ = machine.Transition(status.Offline)
		registry := plugin.NewRegistry(plugin.NewRefSource(), db, evb, logger)
		return engine.New(selfJID, db, evb, registry, machine, cfg, logger), nil
	}

	return bridge.New(bridge.DetectBySocket(socketPath, nativeDetect, engineDetect, logger), logger)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: waddlectl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                     Show connection status")
	fmt.Fprintln(os.Stderr, "  roster                     List contacts")
	fmt.Fprintln(os.Stderr, "  history <chat> [limit] [before]  Show message history")
	fmt.Fprintln(os.Stderr, "  send <to> <body...>        Send a message")
	fmt.Fprintln(os.Stderr, "  presence <show> [status]   Set own presence")
	fmt.Fprintln(os.Stderr, "  join <room> [nick]         Join a room")
	fmt.Fprintln(os.Stderr, "  leave <room>               Leave a room")
	fmt.Fprintln(os.Stderr, "  plugins install <ref>      Install a plugin")
	fmt.Fprintln(os.Stderr, "  plugins uninstall <id>     Remove a plugin")
	fmt.Fprintln(os.Stderr, "  plugins update <id>        Update a plugin")
	fmt.Fprintln(os.Stderr, "  plugins get <id>           Show plugin info")
	fmt.Fprintln(os.Stderr, "  config                     Show UI config")
	fmt.Fprintln(os.Stderr, "  theme [name]               Show or set the UI theme")
	fmt.Fprintln(os.Stderr, "  listen <channel>           Stream events until interrupted")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdStatus(ctx context.Context, b *bridge.Bridge, jsonOut bool) {
	state, err := b.GetStatus(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"backend": b.BackendName(), "state": state})
		return
	}
	fmt.Printf("Backend: %s\n", b.BackendName())
	fmt.Printf("State:   %s\n", state)
}

func cmdRoster(ctx context.Context, b *bridge.Bridge, jsonOut bool) {
	items, err := b.GetRoster(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(items)
		return
	}
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.JID
		}
		fmt.Printf("%-30s %-12s %s\n", name, item.Subscription, item.Presence.Show)
	}
}

func cmdHistory(ctx context.Context, b *bridge.Bridge, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl history <chat> [limit] [before]")
		os.Exit(1)
	}
	limit := 20
	before := ""
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fail(fmt.Errorf("invalid limit %q", args[1]))
		}
		limit = n
	}
	if len(args) > 2 {
		before = args[2]
	}

	msgs, err := b.GetHistory(ctx, args[0], limit, before)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), m.From, m.Body)
	}
}

func cmdSend(ctx context.Context, b *bridge.Bridge, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl send <to> <body...>")
		os.Exit(1)
	}
	m, err := b.SendMessage(ctx, bridgerpc.SendMessageRequest{
		To:   args[0],
		Body: strings.Join(args[1:], " "),
	})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(m)
		return
	}
	fmt.Printf("sent %s\n", m.ID)
}

func cmdPresence(ctx context.Context, b *bridge.Bridge, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl presence <show> [status]")
		os.Exit(1)
	}
	statusText := ""
	if len(args) > 1 {
		statusText = strings.Join(args[1:], " ")
	}
	if err := b.SetPresence(ctx, chat.PresenceShow(args[0]), statusText); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdJoin(ctx context.Context, b *bridge.Bridge, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl join <room> [nick]")
		os.Exit(1)
	}
	nick := ""
	if len(args) > 1 {
		nick = args[1]
	}
	if err := b.JoinRoom(ctx, args[0], nick); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdLeave(ctx context.Context, b *bridge.Bridge, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl leave <room>")
		os.Exit(1)
	}
	if err := b.LeaveRoom(ctx, args[0]); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func cmdPlugins(ctx context.Context, b *bridge.Bridge, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl plugins <install|uninstall|update|get> <ref|id>")
		os.Exit(1)
	}

	var action plugin.Action
	switch args[0] {
	case "install":
		action = plugin.InstallAction(args[1])
	case "uninstall":
		action = plugin.UninstallAction(args[1])
	case "update":
		action = plugin.UpdateAction(args[1])
	case "get":
		action = plugin.GetAction(args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown plugins subcommand: %s\n", args[0])
		os.Exit(1)
	}

	info, err := b.ManagePlugins(ctx, action)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(info)
		return
	}
	fmt.Printf("Plugin:  %s (%s)\n", info.Name, info.ID)
	fmt.Printf("Version: %s\n", info.Version)
	fmt.Printf("Status:  %s\n", info.Status)
	if info.ErrorReason != "" {
		fmt.Printf("Error:   %s (count %d)\n", info.ErrorReason, info.ErrorCount)
	}
}

func cmdConfig(ctx context.Context, b *bridge.Bridge, jsonOut bool) {
	ui, err := b.GetConfig(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(ui)
		return
	}
	fmt.Printf("Theme:         %s (%s)\n", ui.Theme, ui.ThemeName)
	fmt.Printf("Locale:        %s\n", ui.Locale)
	fmt.Printf("Notifications: %v\n", ui.Notifications)
}

func cmdTheme(args []string, jsonOut bool) {
	cfgPath := session.ConfigPath()
	cfg := config.LoadOrDefault(cfgPath)

	if len(args) == 0 {
		if jsonOut {
			outputJSON(map[string]string{"theme": cfg.UI.Theme, "rendered": cfg.UI.ThemeName})
			return
		}
		fmt.Printf("Theme:    %s\n", cfg.UI.Theme)
		fmt.Printf("Rendered: %s\n", cfg.UI.ThemeName)
		return
	}

	rendered, err := applyThemeChoice(args[0], cfg, cfgPath)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"theme": cfg.UI.Theme, "rendered": rendered})
		return
	}
	fmt.Printf("theme set to %s (%s)\n", cfg.UI.Theme, rendered)
}

// applyThemeChoice renders the chosen theme onto the terminal surface and
// persists it to the global config. Terminals expose no scheme signal, so
// the "system" choice resolves against a fixed dark preference here.
func applyThemeChoice(name string, cfg *config.Config, cfgPath string) (string, error) {
	mgr := theme.NewManager(theme.NewTviewSurface(nil), theme.StaticScheme(theme.SchemeDark), nil, zap.NewNop())
	mgr.SetChoice(name)
	if mgr.Choice() != name {
		return "", fmt.Errorf("unknown theme %q", name)
	}
	cfg.UI.Theme = name
	cfg.UI.ThemeName = mgr.Rendered()
	if err := config.Save(cfgPath, cfg); err != nil {
		return "", err
	}
	return mgr.Rendered(), nil
}

func cmdListen(b *bridge.Bridge, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: waddlectl listen <channel>")
		os.Exit(1)
	}

	unlisten, err := b.Listen(context.Background(), args[0], func(env bridgerpc.Envelope) {
		outputJSON(env)
	})
	if err != nil {
		fail(err)
	}
	defer unlisten()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
