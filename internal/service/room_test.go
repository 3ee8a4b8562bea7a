package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"
	"collab-whiteboard/internal/repository/mocks"
	"collab-whiteboard/internal/service"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "very-secret-key"

func newRoomService(t *testing.T) (*service.RoomService, *mocks.RoomRepository) {
	t.Helper()
	repo := mocks.NewRoomRepository(t)
	svc, err := service.NewRoomService(repo, testSecret, 1)
	require.NoError(t, err, "创建 RoomService 不应失败")
	return svc, repo
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestNewRoomService_EmptySecret(t *testing.T) {
	_, err := service.NewRoomService(mocks.NewRoomRepository(t), "", 1)
	assert.Error(t, err)
}

// --- CreateRoom ---

func TestRoomService_CreateRoom_Success(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		assert.Equal(t, "room-1", room.RoomID)
		assert.NotEqual(t, "s3cret", room.PasswordHash, "密码不应明文保存")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte("s3cret")))
		return true
	})).Return(nil).Once()

	room, err := svc.CreateRoom(ctx, " room-1 ", "s3cret")

	require.NoError(t, err)
	assert.Equal(t, "room-1", room.RoomID)
}

func TestRoomService_CreateRoom_Duplicate(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(repository.ErrDuplicateEntry).Once()

	_, err := svc.CreateRoom(ctx, "room-1", "pw")

	assert.ErrorIs(t, err, service.ErrRoomExists)
}

func TestRoomService_CreateRoom_RepositoryError(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(errors.New("db down")).Once()

	_, err := svc.CreateRoom(ctx, "room-1", "pw")

	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestRoomService_CreateRoom_MissingFields(t *testing.T) {
	svc, repo := newRoomService(t)

	_, err := svc.CreateRoom(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateRoom(context.Background(), "room-1", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- JoinRoom ---

func TestRoomService_JoinRoom_IssuesTicket(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("FindByRoomID", ctx, "room-1").
		Return(&domain.Room{ID: 3, RoomID: "room-1", PasswordHash: hashed(t, "pw")}, nil).Once()

	room, ticket, err := svc.JoinRoom(ctx, "room-1", "pw")

	require.NoError(t, err)
	assert.Equal(t, "room-1", room.RoomID)
	require.NotEmpty(t, ticket)

	roomID, err := svc.ParseTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, "room-1", roomID)
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("FindByRoomID", ctx, "nope").Return(nil, repository.ErrRoomNotFound).Once()

	_, _, err := svc.JoinRoom(ctx, "nope", "pw")

	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestRoomService_JoinRoom_WrongPassword(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("FindByRoomID", ctx, "room-1").
		Return(&domain.Room{RoomID: "room-1", PasswordHash: hashed(t, "pw")}, nil).Once()

	_, ticket, err := svc.JoinRoom(ctx, "room-1", "wrong")

	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, ticket)
}

func TestRoomService_RoomExists(t *testing.T) {
	svc, repo := newRoomService(t)
	ctx := context.Background()
	repo.On("Exists", ctx, "room-1").Return(true, nil).Once()
	repo.On("Exists", ctx, "broken").Return(false, errors.New("db down")).Once()

	ok, err := svc.RoomExists(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.RoomExists(ctx, "broken")
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

// --- ParseTicket ---

func TestParseTicket_Rejects(t *testing.T) {
	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"wrong secret":  sign(jwt.MapClaims{service.TicketClaim: "room-1", "exp": future}, "other"),
		"expired":       sign(jwt.MapClaims{service.TicketClaim: "room-1", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret),
		"missing claim": sign(jwt.MapClaims{"exp": future}, testSecret),
		"garbage":       "not-a-token",
	}
	for name, ticket := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.ParseTicket(ticket, []byte(testSecret))
			assert.ErrorIs(t, err, service.ErrInvalidTicket)
		})
	}
}
