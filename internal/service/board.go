package service

import (
	"context"
	"strings"
	"time"

	"recipedia/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// 餐次固定为四个。
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotSnacks    = "snacks"
	SlotDinner    = "dinner"
)

func validSlot(slot string) bool {
	switch slot {
	case SlotBreakfast, SlotLunch, SlotSnacks, SlotDinner:
		return true
	}
	return false
}

// BoardService 维护每个房间每天一张的餐食建议板。
type BoardService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

func NewBoardService(db *gorm.DB, notifier Notifier) *BoardService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &BoardService{db: db, notifier: notifier, now: time.Now}
}

type SuggestionDTO struct {
	ID        uint      `json:"id"`
	Slot      string    `json:"slot"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name"`
	Dish      string    `json:"dish"`
	CreatedAt time.Time `json:"created_at"`
}

type BoardDTO struct {
	RoomID    uint            `json:"room_id"`
	Date      string          `json:"date"`
	Breakfast []SuggestionDTO `json:"breakfast"`
	Lunch     []SuggestionDTO `json:"lunch"`
	Snacks    []SuggestionDTO `json:"snacks"`
	Dinner    []SuggestionDTO `json:"dinner"`
}

// SuggestionAddedEvent 是 suggestion-added 事件的负载。
type SuggestionAddedEvent struct {
	RoomID     uint          `json:"roomId"`
	Date       string        `json:"date"`
	Suggestion SuggestionDTO `json:"suggestion"`
}

// normalizeDate 空串取当前 UTC 日期，其余必须是严格的 YYYY-MM-DD。
func (s *BoardService) normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.now().UTC().Format(dateLayout), nil
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil || t.Format(dateLayout) != date {
		return "", invalid("date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// ensureBoard 在 (room_id, date) 唯一索引上 insert-or-ignore，再读回，保证并发下只有一张板。
func ensureBoard(tx *gorm.DB, roomID uint, date string) (*models.MealBoard, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.MealBoard{RoomID: roomID, Date: date}).Error; err != nil {
		return nil, err
	}
	var board models.MealBoard
	if err := tx.Where(&models.MealBoard{RoomID: roomID, Date: date}).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// Get 返回某天的建议板，不存在时创建空板。
func (s *BoardService) Get(ctx context.Context, roomID uint, date string) (*BoardDTO, error) {
	date, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	var board *models.MealBoard
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findRoom(tx, roomID); err != nil {
			return err
		}
		board, err = ensureBoard(tx, roomID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, board)
}

// AddSuggestion 追加一条建议，同一用户重复提议同一道菜也会保留。
func (s *BoardService) AddSuggestion(ctx context.Context, requesterID, roomID uint, slot, dish, date string) (*BoardDTO, error) {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if !validSlot(slot) {
		return nil, invalid("meal must be one of breakfast, lunch, snacks, dinner")
	}
	dish = strings.TrimSpace(dish)
	if dish == "" {
		return nil, invalid("dish is required")
	}
	date, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	var (
		board *models.MealBoard
		sug   models.MealSuggestion
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireMember(tx, roomID, requesterID); err != nil {
			return err
		}
		var err error
		if board, err = ensureBoard(tx, roomID, date); err != nil {
			return err
		}
		sug = models.MealSuggestion{BoardID: board.ID, Slot: slot, UserID: requesterID, Dish: dish}
		return tx.Create(&sug).Error
	})
	if err != nil {
		return nil, err
	}
	dto, err := s.load(ctx, board)
	if err != nil {
		return nil, err
	}
	for _, list := range [][]SuggestionDTO{dto.Breakfast, dto.Lunch, dto.Snacks, dto.Dinner} {
		for _, sd := range list {
			if sd.ID == sug.ID {
				s.notifier.Broadcast(roomID, EventSuggestionAdded, SuggestionAddedEvent{RoomID: roomID, Date: date, Suggestion: sd})
			}
		}
	}
	return dto, nil
}

func (s *BoardService) load(ctx context.Context, board *models.MealBoard) (*BoardDTO, error) {
	var rows []models.MealSuggestion
	if err := s.db.WithContext(ctx).Where("board_id = ?", board.ID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	users, err := resolveUsers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	dto := &BoardDTO{
		RoomID:    board.RoomID,
		Date:      board.Date,
		Breakfast: []SuggestionDTO{},
		Lunch:     []SuggestionDTO{},
		Snacks:    []SuggestionDTO{},
		Dinner:    []SuggestionDTO{},
	}
	for _, r := range rows {
		sd := SuggestionDTO{ID: r.ID, Slot: r.Slot, UserID: r.UserID, UserName: users[r.UserID].Name, Dish: r.Dish, CreatedAt: r.CreatedAt}
		switch r.Slot {
		case SlotBreakfast:
			dto.Breakfast = append(dto.Breakfast, sd)
		case SlotLunch:
			dto.Lunch = append(dto.Lunch, sd)
		case SlotSnacks:
			dto.Snacks = append(dto.Snacks, sd)
		case SlotDinner:
			dto.Dinner = append(dto.Dinner, sd)
		}
	}
	return dto, nil
}
