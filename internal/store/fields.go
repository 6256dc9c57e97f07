package store

import (
	"strconv"
	"strings"
)

// Login fields (the bot's own chat credentials).

func (d *Document) BotName() string     { return d.Get("bot_name").String() }
func (d *Document) Password() string    { return d.Get("password").String() }
func (d *Document) ChannelName() string { return d.Get("channel_name").String() }

// AdminAPITokenHash returns the bcrypt hash of the admin API bearer
// token, or "" if the admin API has no auth configured.
func (d *Document) AdminAPITokenHash() string { return d.Get("admin_api_token_hash").String() }

// Settings fields. ConnectMessage and AutoWhitelistMsg carry `{0}`/`{1}`
// placeholders the caller substitutes itself (bot name, command sigil,
// promoted user) — this package only stores and returns the template.

func (d *Document) MessageCooldownMs() int {
	return int(d.Get("MessageCooldown").Int())
}

func (d *Document) MainThreadSleepMs() int {
	return int(d.Get("MainThreadSleep").Int())
}

func (d *Document) BotMessageCharLimit() int {
	limit := int(d.Get("BotMessageCharLimit").Int())
	if limit <= 0 {
		return 500
	}
	return limit
}

func (d *Document) ConnectMessage() string {
	return d.Get("ConnectMessage").String()
}

func (d *Document) AutoWhitelistEnabled() bool {
	return d.Get("AutoWhitelistEnabled").Bool()
}

func (d *Document) AutoWhitelistInputCount() int {
	return int(d.Get("AutoWhitelistInputCount").Int())
}

func (d *Document) AutoWhitelistMsg() string {
	return d.Get("AutoWhitelistMsg").String()
}

func (d *Document) UseChatBot() bool {
	return d.Get("UseChatBot").Bool()
}

func (d *Document) CreditsTimeSeconds() int {
	return int(d.Get("CreditsTime").Int())
}

func (d *Document) CreditsAmount() int {
	return int(d.Get("CreditsAmount").Int())
}

// FormatTemplate substitutes `{0}`, `{1}`, … in a settings message
// template with args in order.
func FormatTemplate(template string, args ...string) string {
	out := template
	for i, a := range args {
		out = strings.ReplaceAll(out, placeholder(i), a)
	}
	return out
}

func placeholder(i int) string {
	return "{" + strconv.Itoa(i) + "}"
}
