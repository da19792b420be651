package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/asthahub/storefront-backend/api/responses"
	"github.com/asthahub/storefront-backend/internal/notifications"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
	"github.com/asthahub/storefront-backend/pkg/logger"
)

type notificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	OrderID   *string   `json:"orderId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListNotifications returns a recipient's notifications, newest first.
func ListNotifications(repo *notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email query parameter is required"))
			return
		}

		rows, err := repo.ListForRecipient(r.Context(), email, 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]notificationResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, notificationResponse{
				ID:        row.ID,
				Type:      string(row.Type),
				Title:     row.Title,
				Body:      row.Body,
				OrderID:   row.OrderID,
				Read:      row.Read,
				CreatedAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// MarkNotificationRead flags one notification as read.
func MarkNotificationRead(repo *notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		if err := repo.MarkRead(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}
