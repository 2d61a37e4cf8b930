package remote

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
)

// changePing is the message the backend sends when a table changed.
type changePing struct {
	Table string `json:"table"`
}

// NotifierConfig configures the change notifier.
type NotifierConfig struct {
	// URL is the websocket endpoint for change notifications.
	URL string

	// Token is the bearer token for the authenticated transport.
	Token string

	// OnOnline is called after every successful (re)connect. The
	// scheduler uses this as its connectivity-regained trigger.
	OnOnline func()

	// OnChange is called with the table name for every change ping.
	OnChange func(table string)

	// MinBackoff and MaxBackoff bound the reconnect delay.
	// Defaults: 1s and 1m.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Logger for notifier activity. If nil, stderr is used.
	Logger *log.Logger
}

// Notifier maintains a websocket subscription to the backend's change feed
// and reconnects with capped exponential backoff when the connection drops.
//
// The notifier is advisory: sync correctness never depends on it. A missed
// ping only delays the next cycle until the interval trigger fires.
type Notifier struct {
	cfg NotifierConfig
}

// NewNotifier creates a Notifier. Run must be called to start it.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &Notifier{cfg: cfg}
}

// Run connects and listens until ctx is cancelled. Connection failures are
// logged and retried; Run only returns on cancellation.
func (n *Notifier) Run(ctx context.Context) error {
	delay := n.cfg.MinBackoff

	for {
		connected, err := n.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = n.cfg.MinBackoff
		}
		if err != nil {
			n.cfg.Logger.Printf("Connection lost: %v (retrying in %v)", err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > n.cfg.MaxBackoff {
			delay = n.cfg.MaxBackoff
		}
	}
}

// listen dials the feed and dispatches pings until the connection fails.
// The bool reports whether the dial succeeded at all.
func (n *Notifier) listen(ctx context.Context) (bool, error) {
	opts := &websocket.DialOptions{}
	if n.cfg.Token != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + n.cfg.Token},
		}
	}

	conn, _, err := websocket.Dial(ctx, n.cfg.URL, opts)
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	n.cfg.Logger.Printf("Connected to change feed: %s", n.cfg.URL)
	if n.cfg.OnOnline != nil {
		n.cfg.OnOnline()
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}

		var ping changePing
		if err := json.Unmarshal(data, &ping); err != nil {
			n.cfg.Logger.Printf("Ignoring malformed change ping: %v", err)
			continue
		}
		if n.cfg.OnChange != nil {
			n.cfg.OnChange(ping.Table)
		}
	}
}
