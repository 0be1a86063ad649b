package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"microstructure-lab/internal/domain"
)

// ErrUnbounded is returned when a websocket capture has no tick limit.
var ErrUnbounded = errors.New("websocket capture requires MaxTicks > 0")

// WSConfig configures a bounded websocket capture.
type WSConfig struct {
	URL string

	// Subscribe is sent as a text frame right after connecting, if set.
	Subscribe []byte

	// MaxTicks bounds the capture. Required.
	MaxTicks int

	// MaxDuration stops the capture early when > 0.
	MaxDuration time.Duration

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
}

// DefaultWSConfig returns default timeouts with no URL and no limit.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      30 * time.Second,
		PingInterval:     15 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// wsTick is the JSON frame format. The timestamp is either RFC 3339 in
// "timestamp" or Unix milliseconds in "ts".
type wsTick struct {
	Timestamp  *time.Time `json:"timestamp"`
	TS         int64      `json:"ts"`
	Bid        float64    `json:"bid"`
	Ask        float64    `json:"ask"`
	BidVol     float64    `json:"bid_vol"`
	AskVol     float64    `json:"ask_vol"`
	TradePrice float64    `json:"trade_price"`
	TradeSize  float64    `json:"trade_size"`
}

func (m wsTick) tick() (domain.Tick, bool) {
	var ts time.Time
	switch {
	case m.Timestamp != nil:
		ts = m.Timestamp.UTC()
	case m.TS > 0:
		ts = time.UnixMilli(m.TS).UTC()
	default:
		return domain.Tick{}, false
	}
	return domain.Tick{
		Timestamp:  ts,
		Bid:        m.Bid,
		Ask:        m.Ask,
		BidVol:     m.BidVol,
		AskVol:     m.AskVol,
		TradePrice: m.TradePrice,
		TradeSize:  m.TradeSize,
	}, true
}

// WSSource captures a bounded batch of ticks from a websocket feed.
type WSSource struct {
	cfg    WSConfig
	logger *slog.Logger
}

// NewWSSource creates a websocket tick source.
func NewWSSource(cfg WSConfig, logger *slog.Logger) *WSSource {
	d := DefaultWSConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = d.HandshakeTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = d.ReadTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = d.PingInterval
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSSource{cfg: cfg, logger: logger}
}

// Name implements TickSource.
func (s *WSSource) Name() string { return "websocket" }

// Fetch connects, reads until MaxTicks ticks or MaxDuration elapses, and
// returns what was captured. Malformed frames are skipped. A connection
// error after at least one tick returns the partial batch with the error.
func (s *WSSource) Fetch(ctx context.Context) ([]domain.Tick, error) {
	if s.cfg.MaxTicks <= 0 {
		return nil, ErrUnbounded
	}
	if s.cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MaxDuration)
		defer cancel()
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected tick feed", "url", s.cfg.URL, "max_ticks", s.cfg.MaxTicks)

	if len(s.cfg.Subscribe) > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, s.cfg.Subscribe); err != nil {
			return nil, fmt.Errorf("websocket subscribe: %w", err)
		}
	}

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx, conn)

	ticks := make([]domain.Tick, 0, s.cfg.MaxTicks)
	skipped := 0
	for len(ticks) < s.cfg.MaxTicks {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.cfg.MaxDuration > 0 {
					break
				}
				return ticks, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return ticks, fmt.Errorf("websocket read: %w", err)
		}

		var m wsTick
		if err := json.Unmarshal(msg, &m); err != nil {
			skipped++
			continue
		}
		t, ok := m.tick()
		if !ok {
			skipped++
			continue
		}
		ticks = append(ticks, t)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture complete"),
		time.Now().Add(s.cfg.WriteTimeout))

	s.logger.Info("tick capture finished", "ticks", len(ticks), "skipped_frames", skipped)
	return ticks, nil
}

func (s *WSSource) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.logger.Warn("tick feed ping failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
