package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"skymessage/internal/app/chat"
	"skymessage/internal/pkg/logx"
)

// HandleWebSocket upgrades the connection and starts the client pumps.
// The connection starts unauthenticated; the client must send a TypeAuth
// event carrying its identity token before anything else is accepted.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(conn, deps.Dispatcher, deps.Relay)

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		go client.WritePump()
		client.ReadPump()
	}
}
