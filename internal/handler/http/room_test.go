package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/hub"
	"collab-whiteboard/internal/repository"
	"collab-whiteboard/internal/repository/mocks"
	"collab-whiteboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRoomEngine(t *testing.T) (*gin.Engine, *mocks.RoomRepository) {
	t.Helper()
	repo := mocks.NewRoomRepository(t)
	svc, err := service.NewRoomService(repo, testSecret, 1)
	require.NoError(t, err)

	h := NewRoomHandler(svc)
	r := gin.New()
	r.POST("/api/create-room", h.CreateRoom)
	r.POST("/api/join-room", h.JoinRoom)
	return r, repo
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRoom(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(room *domain.Room) bool {
			return room.RoomID == "board-1" && room.PasswordHash != "pw"
		})).Return(nil).Once()

		w := postJSON(r, "/api/create-room", `{"roomId":"board-1","password":"pw"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"message":"Room created successfully","roomId":"board-1"}`, w.Body.String())
	})

	t.Run("duplicate", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

		w := postJSON(r, "/api/create-room", `{"roomId":"board-1","password":"pw"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"room id already exists"}`, w.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		r, _ := newRoomEngine(t)
		w := postJSON(r, "/api/create-room", `{"roomId":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		r, _ := newRoomEngine(t)
		w := postJSON(r, "/api/create-room", `{"roomId":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("database failure", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

		w := postJSON(r, "/api/create-room", `{"roomId":"board-1","password":"pw"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"An unexpected error occurred"}`, w.Body.String())
	})
}

func TestJoinRoom(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &domain.Room{RoomID: "board-1", PasswordHash: string(hash)}

	t.Run("ticket issued", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("FindByRoomID", mock.Anything, "board-1").Return(stored, nil).Once()

		w := postJSON(r, "/api/join-room", `{"roomId":"board-1","password":"pw"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp JoinRoomResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Joined room successfully", resp.Message)
		assert.Equal(t, "board-1", resp.RoomID)

		roomID, err := service.ParseTicket(resp.Ticket, []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "board-1", roomID)
	})

	t.Run("wrong password", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("FindByRoomID", mock.Anything, "board-1").Return(stored, nil).Once()

		w := postJSON(r, "/api/join-room", `{"roomId":"board-1","password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"invalid password"}`, w.Body.String())
	})

	t.Run("unknown room", func(t *testing.T) {
		r, repo := newRoomEngine(t)
		repo.On("FindByRoomID", mock.Anything, "ghost").Return(nil, repository.ErrRoomNotFound).Once()

		w := postJSON(r, "/api/join-room", `{"roomId":"ghost","password":"pw"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type staticStats hub.Stats

func (s staticStats) Stats() hub.Stats { return hub.Stats(s) }

func TestStatsHandler(t *testing.T) {
	r := gin.New()
	r.GET("/api/stats", NewStatsHandler(staticStats{Rooms: 2, Connections: 5}).Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":2,"connections":5}`, w.Body.String())
}
