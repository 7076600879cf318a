package exchange

import (
	"context"
	"fmt"

	"pairs-bot/internal/config"

	"go.uber.org/zap"
)

// Session speaks the execution protocol over a Client: it logs in on every
// connection, decodes inbound frames into events and encodes commands.
type Session struct {
	client *Client
	log    *zap.Logger
}

func NewSession(cfg config.ExchangeConfig, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	login, err := EncodeCommand(Login{Team: cfg.Team, Secret: cfg.Secret})
	if err != nil {
		return nil, fmt.Errorf("encode login: %w", err)
	}
	client := NewClient(cfg.URL, cfg.ReconnectDelay, cfg.PingInterval, log.Named("ws"))
	client.OnConnect(login)
	return &Session{client: client, log: log}, nil
}

// Run delivers decoded events to sink until ctx is done. sink is called from
// the read goroutine and must not block for long. Undecodable frames are
// logged and skipped.
func (s *Session) Run(ctx context.Context, sink func(Event)) error {
	handler := func(data []byte) {
		ev, err := DecodeEvent(data)
		if err != nil {
			s.log.Warn("dropping undecodable frame", zap.Int("bytes", len(data)), zap.Error(err))
			return
		}
		sink(ev)
	}
	onDrop := func(err error) {
		sink(Disconnect{Err: err})
	}
	return s.client.Run(ctx, handler, onDrop)
}

func (s *Session) Send(ctx context.Context, cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return s.client.Write(ctx, data)
}

func (s *Session) Close() error {
	return s.client.Close()
}
