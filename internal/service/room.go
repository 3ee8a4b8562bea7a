package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TicketClaim 是房间票据中携带房间号的 claim 名。
const TicketClaim = "room_id"

// RoomService 负责房间凭证：创建带密码的房间、校验密码并签发房间票据。
type RoomService struct {
	roomRepo     repository.RoomRepository
	ticketSecret []byte
	ticketTTL    time.Duration
}

// NewRoomService 创建 RoomService 实例。
// ticketSecret 应从安全配置中获取，ticketTTLHours 定义票据过期的小时数。
func NewRoomService(roomRepo repository.RoomRepository, ticketSecret string, ticketTTLHours int) (*RoomService, error) {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if ticketSecret == "" {
		return nil, fmt.Errorf("ticket secret key cannot be empty")
	}
	if ticketTTLHours <= 0 {
		ticketTTLHours = 24
	}
	return &RoomService{
		roomRepo:     roomRepo,
		ticketSecret: []byte(ticketSecret),
		ticketTTL:    time.Duration(ticketTTLHours) * time.Hour,
	}, nil
}

// CreateRoom 创建一个带密码的新房间。
func (s *RoomService) CreateRoom(ctx context.Context, roomID, password string) (*domain.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || password == "" {
		return nil, ErrInvalidInput
	}
	logCtx := logrus.WithField("room_id", roomID)

	hash, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash room password")
		return nil, ErrInternalServer
	}

	room := &domain.Room{RoomID: roomID, PasswordHash: hash}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("Create room failed: room id already exists")
			return nil, ErrRoomExists
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// JoinRoom 校验房间密码，成功时返回房间和签发的票据。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, password string) (*domain.Room, string, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || password == "" {
		return nil, "", ErrInvalidInput
	}
	logCtx := logrus.WithField("room_id", roomID)

	room, err := s.roomRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Join room failed: room not found")
			return nil, "", ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Join room failed: repository error")
		return nil, "", ErrInternalServer
	}
	if room == nil {
		return nil, "", ErrRoomNotFound
	}

	if !checkPassword(password, room.PasswordHash) {
		logCtx.Warn("Join room failed: invalid password")
		return nil, "", ErrInvalidCredentials
	}

	ticket, err := s.issueTicket(room.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to sign room ticket")
		return nil, "", ErrInternalServer
	}

	logCtx.Info("Room credentials accepted, ticket issued")
	return room, ticket, nil
}

// RoomExists 报告房间是否已经创建。
func (s *RoomService) RoomExists(ctx context.Context, roomID string) (bool, error) {
	exists, err := s.roomRepo.Exists(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("RoomExists: repository error")
		return false, ErrInternalServer
	}
	return exists, nil
}

// ParseTicket 校验票据签名和有效期，返回其中的房间号。
func (s *RoomService) ParseTicket(ticket string) (string, error) {
	return ParseTicket(ticket, s.ticketSecret)
}

// ParseTicket 使用给定密钥校验房间票据。
func ParseTicket(ticket string, secret []byte) (string, error) {
	token, err := jwt.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidTicket
	}
	roomID, ok := claims[TicketClaim].(string)
	if !ok || roomID == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidTicket, TicketClaim)
	}
	return roomID, nil
}

func (s *RoomService) issueTicket(roomID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		TicketClaim: roomID,
		"exp":       now.Add(s.ticketTTL).Unix(),
		"iat":       now.Unix(),
	})
	signed, err := token.SignedString(s.ticketSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return signed, nil
}

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
