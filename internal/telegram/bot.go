package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebaygate/ebaygate/internal/logging"
	"github.com/ebaygate/ebaygate/internal/models"
	"github.com/ebaygate/ebaygate/internal/store"
)

const defaultPollInterval = 2 * time.Second

// Bot answers operator commands in a single admin chat. Anything from
// another chat is ignored.
type Bot struct {
	api      BotAPI
	chatID   int64
	store    store.Store
	logger   *logging.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

type BotOption func(*Bot)

func WithLogger(l *logging.Logger) BotOption {
	return func(b *Bot) { b.logger = l }
}

func WithPollInterval(d time.Duration) BotOption {
	return func(b *Bot) { b.interval = d }
}

// NewBot wires a command bot for the given admin chat.
func NewBot(api BotAPI, chatID int64, st store.Store, opts ...BotOption) *Bot {
	b := &Bot{
		api:      api,
		chatID:   chatID,
		store:    st,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the poll loop. Safe to call once.
func (b *Bot) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop()
}

// Stop halts the poll loop and waits for it to exit.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stop)
	done := b.done
	b.mu.Unlock()
	<-done
}

func (b *Bot) loop() {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			messages, err := b.api.GetUpdates()
			if err != nil {
				if b.logger != nil {
					b.logger.Warn("telegram poll failed", "error", err.Error())
				}
				continue
			}
			for _, msg := range messages {
				b.handle(msg)
			}
		}
	}
}

func (b *Bot) handle(msg Message) {
	if msg.ChatID != b.chatID {
		return
	}

	cmd := strings.Fields(strings.TrimSpace(msg.Text))
	if len(cmd) == 0 {
		return
	}

	var reply string
	switch strings.ToLower(cmd[0]) {
	case "/status":
		reply = b.statusMessage()
	case "/accounts":
		reply = b.accountsMessage()
	case "/help", "/start":
		reply = helpMessage
	default:
		return
	}

	if err := b.api.SendMessage(b.chatID, reply); err != nil && b.logger != nil {
		b.logger.Warn("telegram send failed", "error", err.Error())
	}
}

const helpMessage = `*ebaygate*
/status - account and token summary
/accounts - per-account token expiry
/help - this message`

func (b *Bot) statusMessage() string {
	accounts := b.store.ListAccounts("")
	active, inactive, expiring := 0, 0, 0
	now := time.Now()
	for _, a := range accounts {
		if a.Status == models.AccountStatusActive {
			active++
		} else {
			inactive++
		}
		if a.ExpiresAt.Sub(now) < time.Hour {
			expiring++
		}
	}

	var sb strings.Builder
	sb.WriteString("*Gateway status*\n")
	fmt.Fprintf(&sb, "Accounts: %d active, %d inactive\n", active, inactive)
	fmt.Fprintf(&sb, "Expiring within 1h: %d\n", expiring)
	fmt.Fprintf(&sb, "Connections: %d\n", len(b.store.ListConnections("")))
	return sb.String()
}

func (b *Bot) accountsMessage() string {
	accounts := b.store.ListAccounts("")
	if len(accounts) == 0 {
		return "No authorized accounts."
	}

	now := time.Now()
	var sb strings.Builder
	sb.WriteString("*Accounts*\n")
	for _, a := range accounts {
		name := a.FriendlyName
		if name == "" {
			name = a.ID
		}
		remaining := a.ExpiresAt.Sub(now).Round(time.Minute)
		marker := "OK"
		switch {
		case a.Status != models.AccountStatusActive:
			marker = "inactive"
		case remaining <= 0:
			marker = "expired"
		case remaining < time.Hour:
			marker = "expiring"
		}
		fmt.Fprintf(&sb, "%s: %s (token expires in %s)\n", name, marker, remaining)
	}
	return sb.String()
}
