package internal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chatwire/repositories"

	"github.com/dgraph-io/badger/v4"
)

// InspectRow is one stored message rendered for the debug endpoint.
type InspectRow struct {
	Key         string `json:"key"`
	ID          int64  `json:"id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
	CreatedAt   string `json:"createdAt"`
	DecodeError string `json:"decodeError,omitempty"`
}

// StartDebugServer exposes a read-only JSON view of the conversation
// store, for development only. Pass a prefix query parameter to narrow
// the scan; the default covers every message.
func StartDebugServer(db *badger.DB, port int, endpoint string) {
	mux := http.NewServeMux()

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		var rows []InspectRow
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					rows = append(rows, toRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func toRow(key string, val []byte) InspectRow {
	msg, err := repositories.DecodeStored(val)
	if err != nil {
		return InspectRow{Key: key, DecodeError: err.Error()}
	}
	return InspectRow{
		Key:       key,
		ID:        msg.ID,
		Sender:    msg.SenderID,
		Recipient: msg.RecipientID,
		Text:      msg.Text,
		Image:     msg.Image,
		CreatedAt: msg.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
