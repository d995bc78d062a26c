package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher forwards events to NATS on "<prefix>.<type>.<key>" so other
// instances and downstream services can follow queue and veto activity.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

func NewNATSPublisher(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("queue-veto-backend"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log}, nil
}

func (p *NATSPublisher) Subject(e Event) string {
	if e.Key == "" {
		return fmt.Sprintf("%s.%s", p.prefix, e.Type)
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, e.Type, e.Key)
}

func (p *NATSPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.log.Error("failed to marshal event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	if err := p.nc.Publish(p.Subject(e), data); err != nil {
		p.log.Error("failed to publish to NATS", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// Subscribe delivers decoded events matching subject (wildcards allowed).
func (p *NATSPublisher) Subscribe(subject string, handler func(Event)) (*nats.Subscription, error) {
	return p.nc.Subscribe(subject, func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			p.log.Warn("failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(e)
	})
}

func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
