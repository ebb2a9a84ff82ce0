package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Wire format: "<type>\n<json>". The type prefix lets SUB sockets filter.
const topicSep = '\n'

// NNGPublisher is a Sink that broadcasts events on a nanomsg PUB socket.
type NNGPublisher struct {
	sock mangos.Socket
}

// NewNNGPublisher listens on url, e.g. tcp://127.0.0.1:40899.
func NewNNGPublisher(url string) (*NNGPublisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create pub socket: %w", err)
	}
	if err := sock.Listen(url); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", url, err)
	}
	return &NNGPublisher{sock: sock}, nil
}

// Publish sends ev to every connected subscriber.
func (p *NNGPublisher) Publish(ev Event) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	return p.sock.Send(msg)
}

// Close closes the socket.
func (p *NNGPublisher) Close() error {
	return p.sock.Close()
}

// NNGSubscriber reads events from a remote NNGPublisher.
type NNGSubscriber struct {
	sock mangos.Socket
}

// NewNNGSubscriber dials url and subscribes to the given event types, or to
// all of them when none are given.
func NewNNGSubscriber(url string, types ...Type) (*NNGSubscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create sub socket: %w", err)
	}
	if len(types) == 0 {
		if err := sock.SetOption(mangos.OptionSubscribe, []byte{}); err != nil {
			sock.Close()
			return nil, err
		}
	}
	for _, t := range types {
		topic := append([]byte(t), topicSep)
		if err := sock.SetOption(mangos.OptionSubscribe, topic); err != nil {
			sock.Close()
			return nil, err
		}
	}
	if err := sock.Dial(url); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &NNGSubscriber{sock: sock}, nil
}

// Recv waits up to timeout for the next event. A zero timeout waits forever.
func (s *NNGSubscriber) Recv(timeout time.Duration) (Event, error) {
	if err := s.sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		return Event{}, err
	}
	msg, err := s.sock.Recv()
	if err != nil {
		return Event{}, err
	}
	return decode(msg)
}

// Close closes the socket.
func (s *NNGSubscriber) Close() error {
	return s.sock.Close()
}

// IsTimeout reports whether err is a receive deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, mangos.ErrRecvTimeout)
}

func encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := make([]byte, 0, len(ev.Type)+1+len(body))
	msg = append(msg, ev.Type...)
	msg = append(msg, topicSep)
	return append(msg, body...), nil
}

func decode(msg []byte) (Event, error) {
	var ev Event
	i := bytes.IndexByte(msg, topicSep)
	if i < 0 {
		return ev, errors.New("malformed event message")
	}
	if err := json.Unmarshal(msg[i+1:], &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}
