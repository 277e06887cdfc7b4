package controllers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tablewise/floorstaff-backend/api/responses"
	"github.com/tablewise/floorstaff-backend/internal/realtime"
	"github.com/tablewise/floorstaff-backend/pkg/config"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

// StaffEvents upgrades the request to a WebSocket and streams assignment
// events to the authenticated staff member until the connection drops.
func StaffEvents(hub *realtime.Hub, cfg config.RealtimeConfig, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if cfg.AllowAllOrigins {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime hub unavailable"))
			return
		}

		staffID, err := staffIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure to the client.
			logg.Warn(logg.WithField(r.Context(), "staff_id", staffID.String()), "websocket upgrade failed")
			return
		}

		session := realtime.NewSession(staffID, cfg.SendBufferSize)
		client := realtime.NewClient(hub, session, conn, logg, cfg)
		client.Run(r.Context())
	}
}
