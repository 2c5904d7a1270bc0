// Package internal hosts the debug inspector, a read-only HTML view over
// the badger store for local troubleshooting.
package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one rendered store entry.
type InspectRow struct {
	Key       string
	Course    string
	Order     string
	Timestamp string
	Sender    string
	Content   string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves the inspector on its own port, separate from the
// chat surface, so it can stay firewalled in shared environments.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = MessageMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// MessageMapper renders a transcript entry stored under "msg:{course}:{order}".
func MessageMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Course:    "-",
		Order:     "-",
		Timestamp: "--:--:--",
		Sender:    "--------",
		Content:   "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	if len(parts) >= 3 {
		row.Course = parts[1]
		row.Order = strings.TrimLeft(parts[2], "0")
		if row.Order == "" {
			row.Order = "0"
		}
	}

	var msg struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
		At      int64  `json:"at"`
	}
	if err := json.Unmarshal(val, &msg); err != nil {
		return row
	}

	row.Sender = msg.Sender
	if len(row.Sender) > 8 {
		row.Sender = row.Sender[:8]
	}
	row.Content = msg.Content
	row.Timestamp = time.Unix(0, msg.At).UTC().Format("15:04:05")
	return row
}
