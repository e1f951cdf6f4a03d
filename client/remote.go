package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chatwire/domain"
	"chatwire/wire"

	"github.com/coder/websocket"
	"github.com/samber/lo"
)

// HistoryClient fetches conversation history over the server's HTTP
// endpoint with a bearer token.
type HistoryClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHistoryClient(baseURL, token string) *HistoryClient {
	return &HistoryClient{baseURL: baseURL, token: token, http: http.DefaultClient}
}

func (c *HistoryClient) Fetch(ctx context.Context, peerID string) ([]domain.Message, error) {
	endpoint := fmt.Sprintf("%s/history?peer=%s", c.baseURL, url.QueryEscape(peerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch returned %s", resp.Status)
	}

	var messages []wire.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m wire.Message, _ int) domain.Message {
		return m.ToDomain()
	}), nil
}

// SocketTransport is the live connection to the realtime server.
type SocketTransport struct {
	conn *websocket.Conn
}

// DialSocket opens the authenticated websocket against the server's
// base URL (http or https scheme).
func DialSocket(ctx context.Context, baseURL, token string) (*SocketTransport, error) {
	endpoint := strings.Replace(baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &SocketTransport{conn: conn}, nil
}

func (t *SocketTransport) Send(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

// Listen feeds every inbound frame to the handler until the connection
// or the context ends.
func (t *SocketTransport) Listen(ctx context.Context, handle func(frame []byte)) error {
	for {
		typ, frame, err := t.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		handle(frame)
	}
}

func (t *SocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
