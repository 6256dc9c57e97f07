// Command inputbot runs the chat-driven input bot: it dials a chat
// relay, translates messages into gamepad sequences, and plays them
// against a pool of virtual controllers.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputbot/internal/adapter"
	"inputbot/internal/api"
	"inputbot/internal/dashboard"
	"inputbot/internal/mainloop"
	"inputbot/internal/macro"
	"inputbot/internal/scheduler"
	"inputbot/internal/store"
	"inputbot/internal/transport"
	"inputbot/internal/user"
	"inputbot/internal/vcontroller"
	"inputbot/internal/vocab"
)

var (
	version = "0.1.0"

	showVer      = flag.Bool("version", false, "show version and exit")
	dataDir      = flag.String("data-dir", "", "directory for persisted documents (default: per-OS application data dir)")
	relayAddr    = flag.String("relay-addr", "localhost:8765", "host:port of the chat relay to dial")
	relaySecure  = flag.Bool("relay-secure", false, "use wss:// instead of ws:// for the relay connection")
	controllers  = flag.Int("controllers", 4, "number of virtual controllers to acquire")
	maxQueue     = flag.Int("max-queue-depth", 16, "per-port scheduler lane queue depth")
	adminAddr    = flag.String("admin-addr", "", "host:port for the admin HTTP+WebSocket API (empty disables it)")
	adminToken   = flag.String("admin-token", "", "plaintext admin API bearer token (hashed in memory, never logged)")
	hashToken    = flag.String("hash-admin-token", "", "print a bcrypt hash for the given token and exit, for storing in login.json")
	showDash     = flag.Bool("dashboard", false, "run the terminal dashboard against --admin-addr instead of the bot itself")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("inputbot version %s\n", version)
		return
	}

	if *hashToken != "" {
		hash, err := api.HashToken(*hashToken)
		if err != nil {
			log.Fatalf("inputbot: failed to hash token: %v", err)
		}
		fmt.Println(hash)
		return
	}

	if *showDash {
		runDashboard()
		return
	}

	runBot()
}

func runDashboard() {
	if *adminAddr == "" {
		log.Fatal("inputbot: --dashboard requires --admin-addr")
	}
	cfg := dashboard.Config{WSAddr: *adminAddr, HTTPAddr: *adminAddr, Token: *adminToken}
	if err := dashboard.Run(cfg); err != nil {
		log.Fatalf("inputbot: dashboard exited: %v", err)
	}
}

func runBot() {
	log.Println("inputbot: starting")

	storeMgr := openStore()
	storeMgr.OnSaveError = func(doc string, err error) {
		log.Printf("CRITICAL — Unable to save data (%s): %v", doc, err)
	}
	if err := storeMgr.Load(); err != nil {
		log.Fatalf("inputbot: failed to load persisted documents: %v", err)
	}

	login := storeMgr.Login()
	settings := storeMgr.Settings()
	channel := login.ChannelName()
	if channel == "" {
		channel = "#unset"
		log.Printf("inputbot: no channel configured in login.json, using placeholder %q", channel)
	}

	driver := vcontroller.NewMemoryDriver(1, 8)
	manager := vcontroller.NewManager(driver)
	acquired, err := manager.Init(*controllers)
	if err != nil {
		log.Fatalf("inputbot: failed to acquire any virtual controller: %v", err)
	}
	log.Printf("inputbot: acquired %d virtual controller(s)", acquired)

	sched := scheduler.New(manager, *maxQueue)

	var users *user.MemoryStore
	users = user.NewMemoryStore(func(u *user.User) { saveUsers(storeMgr, users) })

	var macros *macro.Store
	macros = macro.New(func() { saveMacros(storeMgr, macros) })

	gateway := transport.NewGatewayTransport(*relayAddr, "/ws", *relaySecure)

	loop := mainloop.New(gateway, mainloop.Config{
		TickInterval:  durationOrDefault(settings.MainThreadSleepMs(), 500*time.Millisecond),
		MinSleep:      100 * time.Millisecond,
		MaxSleep:      5 * time.Second,
		Cooldown:      durationOrDefault(settings.MessageCooldownMs(), 1200*time.Millisecond),
		CharLimit:     settings.BotMessageCharLimit(),
		MaxQueueDepth: 100,
	})

	adapterCfg := adapter.Config{
		Vocabulary:             vocab.Default(),
		DefaultPort:            0,
		ControllerCount:        acquired,
		MaxUserDurationMs:      0,
		AutoWhitelistEnabled:   settings.AutoWhitelistEnabled(),
		AutoWhitelistThreshold: uint64(settings.AutoWhitelistInputCount()),
		AutoWhitelistAnnounce:  settings.AutoWhitelistMsg(),
	}
	ad := adapter.New(adapterCfg, users, macros, manager, sched, loop, channel)
	ad.OnMemeDirty(func() { saveMemes(storeMgr, ad) })

	loadBotData(storeMgr.BotData(), macros, users, ad)

	dispatcher := transport.NewDispatcher()
	ad.Subscribe(dispatcher)
	loop.Register(mainloop.RoutineFunc(func(time.Time) { dispatcher.Tock() }))

	var adminServer *api.Server
	if *adminAddr != "" {
		tokenHash := login.AdminAPITokenHash()
		if tokenHash == "" && *adminToken != "" {
			if h, err := api.HashToken(*adminToken); err == nil {
				tokenHash = h
			} else {
				log.Printf("inputbot: failed to hash --admin-token: %v", err)
			}
		}
		adminServer = api.NewServer(api.Config{TokenHash: tokenHash}, manager, sched, users)
		go func() {
			if err := adminServer.Start(*adminAddr); err != nil {
				log.Printf("inputbot: admin API stopped: %v", err)
			}
		}()
		loop.Register(mainloop.RoutineFunc(func(time.Time) {
			adminServer.BroadcastEvent("status", api.StatusSnapshot{Ports: sched.Status(), UserCount: len(users.All())})
		}))
	}

	sched.OnQueueOverflow = func(port int, droppedUser string) {
		log.Printf("scheduler: dropped queued sequence for %s on port %d (queue full)", droppedUser, port+1)
	}
	sched.OnDeviceGone = func(port int) {
		log.Printf("scheduler: port %d reported device gone", port+1)
		loop.Enqueue(channel, fmt.Sprintf("joystick %d disconnected, sequences on that port were cancelled", port+1))
	}

	go func() {
		if err := gateway.Run(dispatcher); err != nil {
			log.Printf("inputbot: relay connection stopped: %v", err)
		}
	}()
	go loop.Run()

	waitForShutdownSignal()

	log.Println("inputbot: shutting down")
	gateway.Stop()
	sched.StopAll()
	sched.Shutdown()
	loop.Stop()
	manager.Cleanup()
	if err := storeMgr.SaveAll(); err != nil {
		log.Printf("inputbot: failed to save all documents during shutdown: %v", err)
	}
	log.Println("inputbot: stopped")
}

func openStore() *store.Manager {
	var backend store.Backend
	if *dataDir != "" {
		backend = store.NewFileBackendAt(*dataDir)
	} else {
		fb, err := store.NewFileBackend("inputbot")
		if err != nil {
			log.Fatalf("inputbot: failed to resolve data directory: %v", err)
		}
		backend = fb
	}
	return store.NewManager(backend)
}

func durationOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
