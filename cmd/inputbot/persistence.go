package main

import (
	"log"

	"github.com/tidwall/gjson"

	"inputbot/internal/access"
	"inputbot/internal/adapter"
	"inputbot/internal/macro"
	"inputbot/internal/store"
	"inputbot/internal/user"
)

// userRecord is the bot_data on-disk shape for one user; kept as a
// plain struct (rather than dotted per-field sjson paths) so a
// username containing '.' or other path-special characters needs no
// escaping.
type userRecord struct {
	Name            string `json:"name"`
	Level           int    `json:"level"`
	OptedOut        bool   `json:"opted_out"`
	AutoWhitelisted bool   `json:"auto_whitelisted"`
	MessageCount    uint64 `json:"message_count"`
	ValidInputCount uint64 `json:"valid_input_count"`
	Port            int    `json:"port"`
	Silenced        bool   `json:"silenced"`
}

type macroRecord struct {
	Key  string `json:"key"`
	Body string `json:"body"`
}

type memeRecord struct {
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
}

// loadBotData seeds macros, memes, and users from the bot_data document
// into their respective in-memory stores at startup.
func loadBotData(doc *store.Document, macros *macro.Store, users *user.MemoryStore, ad *adapter.Adapter) {
	doc.Get("macros").ForEach(func(_, v gjson.Result) bool {
		if _, err := macros.Add(v.Get("key").String(), v.Get("body").String()); err != nil {
			log.Printf("inputbot: skipping stored macro %q: %v", v.Get("key").String(), err)
		}
		return true
	})

	doc.Get("memes").ForEach(func(_, v gjson.Result) bool {
		ad.SetMeme(v.Get("trigger").String(), v.Get("response").String())
		return true
	})

	doc.Get("users").ForEach(func(_, v gjson.Result) bool {
		users.Put(&user.User{
			Name:            v.Get("name").String(),
			Level:           access.Level(v.Get("level").Int()),
			OptedOut:        v.Get("opted_out").Bool(),
			AutoWhitelisted: v.Get("auto_whitelisted").Bool(),
			MessageCount:    uint64(v.Get("message_count").Int()),
			ValidInputCount: uint64(v.Get("valid_input_count").Int()),
			Port:            int(v.Get("port").Int()),
			Silenced:        v.Get("silenced").Bool(),
		})
		return true
	})

	log.Printf("inputbot: loaded %d macro(s), %d user(s) from bot_data", len(macros.All()), len(users.All()))
}

// saveMemes rewrites the bot_data document's meme table from the
// adapter's live meme map; wired as the adapter's OnMemeDirty hook.
func saveMemes(mgr *store.Manager, ad *adapter.Adapter) {
	live := ad.Memes()
	records := make([]memeRecord, 0, len(live))
	for trigger, response := range live {
		records = append(records, memeRecord{Trigger: trigger, Response: response})
	}
	if err := mgr.BotData().Set("memes", records); err != nil {
		log.Printf("inputbot: failed to stage memes: %v", err)
		return
	}
	if err := mgr.SaveBotData(); err != nil {
		log.Printf("inputbot: failed to persist memes: %v", err)
	}
}

// saveMacros rewrites the bot_data document's macro table from the live
// Store; wired as macro.Store's onDirty hook.
func saveMacros(mgr *store.Manager, macros *macro.Store) {
	live := macros.All()
	records := make([]macroRecord, 0, len(live))
	for _, m := range live {
		records = append(records, macroRecord{Key: m.Key, Body: m.Body})
	}
	if err := mgr.BotData().Set("macros", records); err != nil {
		log.Printf("inputbot: failed to stage macros: %v", err)
		return
	}
	if err := mgr.SaveBotData(); err != nil {
		log.Printf("inputbot: failed to persist macros: %v", err)
	}
}

// saveUsers rewrites the bot_data document's user table from the live
// Store; wired as user.MemoryStore's onDirty hook. Re-serializing every
// known user on each mutation is simpler than targeted per-user patches
// and user counts are small enough that it isn't a bottleneck.
func saveUsers(mgr *store.Manager, users *user.MemoryStore) {
	live := users.All()
	records := make([]userRecord, 0, len(live))
	for _, u := range live {
		records = append(records, userRecord{
			Name:            u.Name,
			Level:           int(u.Level),
			OptedOut:        u.OptedOut,
			AutoWhitelisted: u.AutoWhitelisted,
			MessageCount:    u.MessageCount,
			ValidInputCount: u.ValidInputCount,
			Port:            u.Port,
			Silenced:        u.Silenced,
		})
	}
	if err := mgr.BotData().Set("users", records); err != nil {
		log.Printf("inputbot: failed to stage users: %v", err)
		return
	}
	if err := mgr.SaveBotData(); err != nil {
		log.Printf("inputbot: failed to persist users: %v", err)
	}
}
