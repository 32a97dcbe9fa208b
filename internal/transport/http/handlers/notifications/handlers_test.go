package notificationshandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wipetrace/internal/domain/auth"
	"wipetrace/internal/domain/notifications"
	"wipetrace/internal/transport/http/middleware"
)

type mockInbox struct {
	mock.Mock
}

func (m *mockInbox) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (notifications.ListResult, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	return args.Get(0).(notifications.ListResult), args.Error(1)
}

func (m *mockInbox) MarkRead(ctx context.Context, userID, notificationID string) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

func serve(h *Handler, userID, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: userID, Role: auth.RoleUser}))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestListNotifications(t *testing.T) {
	inbox := &mockInbox{}
	inbox.On("List", mock.Anything, "u1", true, 20, 0).Return(notifications.ListResult{
		Notifications: []notifications.Notification{{ID: "n1", Title: "Deletion Request Update"}},
		Total:         3,
		Unread:        1,
	}, nil)

	rec := serve(NewHandler(inbox), "u1", http.MethodGet, "/notifications?unread=true")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	assert.Contains(t, rec.Body.String(), "Deletion Request Update")
	inbox.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	inbox := &mockInbox{}
	const (
		read    = "6a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
		unknown = "7b2c3d4e-5f6a-4b7c-9d8e-0f1a2b3c4d5e"
	)
	inbox.On("MarkRead", mock.Anything, "u1", read).Return(nil)
	inbox.On("MarkRead", mock.Anything, "u1", unknown).Return(notifications.ErrNotFound)

	assert.Equal(t, http.StatusOK, serve(NewHandler(inbox), "u1", http.MethodPost, "/notifications/"+read+"/read").Code)
	assert.Equal(t, http.StatusNotFound, serve(NewHandler(inbox), "u1", http.MethodPost, "/notifications/"+unknown+"/read").Code)
	assert.Equal(t, http.StatusNotFound, serve(NewHandler(inbox), "u1", http.MethodPost, "/notifications/n1/read").Code)
	inbox.AssertNumberOfCalls(t, "MarkRead", 2)
}

func TestNotificationsRequireUser(t *testing.T) {
	inbox := &mockInbox{}
	assert.Equal(t, http.StatusUnauthorized, serve(NewHandler(inbox), "", http.MethodGet, "/notifications").Code)
	inbox.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
