package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"Walcord/internal/feed"
	"Walcord/internal/model"
	"Walcord/internal/repository/mysql"
)

var (
	ErrNoMedia          = errors.New("at least one media item is required")
	ErrTooManyMedia     = errors.New("too many media items")
	ErrInvalidMediaType = errors.New("media type must be image or video")
	ErrMissingArtist    = errors.New("artist is required")
	ErrMissingTitle     = errors.New("title is required")
)

const (
	maxMediaPerUpload = 20
	uploadURLExpiry   = 15 * time.Minute
)

// Presigner 客户端直传对象存储
type Presigner interface {
	PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// MediaInput 已上传对象的 key（或外部 URL）
type MediaInput struct {
	Key  string `json:"key" binding:"required"`
	Type string `json:"type"`
}

type ConcertInput struct {
	Artist    string       `json:"artist"`
	Tour      string       `json:"tour"`
	Venue     string       `json:"venue"`
	City      string       `json:"city"`
	EventDate *time.Time   `json:"event_date"`
	Media     []MediaInput `json:"media"`
}

type MemoryInput struct {
	Title    string       `json:"title"`
	Caption  string       `json:"caption"`
	Artist   string       `json:"artist"`
	Location string       `json:"location"`
	Media    []MediaInput `json:"media"`
}

// UploadTicket 预签名上传地址和之后提交时使用的 key
type UploadTicket struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ContentService struct {
	repo  *mysql.ContentRepository
	store Presigner
}

func NewContentService(repo *mysql.ContentRepository, store Presigner) *ContentService {
	return &ContentService{repo: repo, store: store}
}

func checkMedia(items []MediaInput) error {
	if len(items) == 0 {
		return ErrNoMedia
	}
	if len(items) > maxMediaPerUpload {
		return ErrTooManyMedia
	}
	for i := range items {
		switch items[i].Type {
		case "":
			items[i].Type = "image"
		case "image", "video":
		default:
			return ErrInvalidMediaType
		}
	}
	return nil
}

// PresignUpload 生成对象 key：{kind}/{user}/{uuid}{ext}
func (s *ContentService) PresignUpload(ctx context.Context, userID uint64, kind feed.Kind, filename string) (*UploadTicket, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("%s/%d/%s%s", kind, userID, uuid.NewString(), ext)
	u, err := s.store.PresignUpload(ctx, key, uploadURLExpiry)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{Key: key, UploadURL: u, ExpiresAt: time.Now().Add(uploadURLExpiry)}, nil
}

func (s *ContentService) CreateConcert(ctx context.Context, userID uint64, in ConcertInput) (*model.Concert, error) {
	if strings.TrimSpace(in.Artist) == "" {
		return nil, ErrMissingArtist
	}
	if err := checkMedia(in.Media); err != nil {
		return nil, err
	}
	c := &model.Concert{
		UserID:     userID,
		ArtistName: strings.TrimSpace(in.Artist),
		TourName:   strings.TrimSpace(in.Tour),
		Venue:      in.Venue,
		City:       in.City,
		EventDate:  in.EventDate,
	}
	media := make([]model.ConcertMedia, len(in.Media))
	for i, m := range in.Media {
		media[i] = model.ConcertMedia{URL: m.Key, MediaType: m.Type}
	}
	if err := s.repo.CreateConcert(ctx, c, media); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ContentService) AddConcertMedia(ctx context.Context, userID, concertID uint64, items []MediaInput) error {
	if err := checkMedia(items); err != nil {
		return err
	}
	media := make([]model.ConcertMedia, len(items))
	for i, m := range items {
		media[i] = model.ConcertMedia{URL: m.Key, MediaType: m.Type}
	}
	return s.repo.AddConcertMedia(ctx, concertID, userID, media)
}

func (s *ContentService) CreateMemory(ctx context.Context, userID uint64, in MemoryInput) (*model.Memory, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrMissingTitle
	}
	if err := checkMedia(in.Media); err != nil {
		return nil, err
	}
	m := &model.Memory{
		UserID:     userID,
		Title:      strings.TrimSpace(in.Title),
		Caption:    in.Caption,
		ArtistName: strings.TrimSpace(in.Artist),
		Location:   in.Location,
	}
	media := make([]model.MemoryMedia, len(in.Media))
	for i, it := range in.Media {
		media[i] = model.MemoryMedia{URL: it.Key, MediaType: it.Type}
	}
	if err := s.repo.CreateMemory(ctx, m, media); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ContentService) AddMemoryMedia(ctx context.Context, userID, memoryID uint64, items []MediaInput) error {
	if err := checkMedia(items); err != nil {
		return err
	}
	media := make([]model.MemoryMedia, len(items))
	for i, m := range items {
		media[i] = model.MemoryMedia{URL: m.Key, MediaType: m.Type}
	}
	return s.repo.AddMemoryMedia(ctx, memoryID, userID, media)
}
