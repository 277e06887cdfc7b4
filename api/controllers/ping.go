package controllers

import (
	"net/http"

	"github.com/tablewise/floorstaff-backend/api/middleware"
	"github.com/tablewise/floorstaff-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func StaffPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "staff", "status": "ok"}
		if staff := middleware.StaffIDFromContext(r.Context()); staff != "" {
			payload["staff_id"] = staff
		}
		responses.WriteSuccess(w, payload)
	}
}
