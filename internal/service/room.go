package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"recipedia/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxRoomNameLen = 128

// RoomService 维护房间聚合：房间、成员关系以及房间内的菜谱。
type RoomService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewRoomService(db *gorm.DB, notifier Notifier) *RoomService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &RoomService{db: db, notifier: notifier}
}

type MemberDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RoomRecipeDTO struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	CreatorName string `json:"creator_name"`
}

// RoomDTO 是填充后的房间视图，Members 第一位是创建者。
type RoomDTO struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	CreatorID uint            `json:"creator_id"`
	Members   []MemberDTO     `json:"members"`
	Recipes   []RoomRecipeDTO `json:"recipes"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecipeAddedEvent 是 recipe-added 事件的负载。
type RecipeAddedEvent struct {
	RoomID uint       `json:"roomId"`
	Recipe *RecipeDTO `json:"recipe"`
}

// addMember 以 insert-or-ignore 写入成员行，返回是否新增。
func addMember(tx *gorm.DB, roomID, userID uint) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RoomMember{RoomID: roomID, UserID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Create 创建房间，创建者成为第一个成员。
func (s *RoomService) Create(ctx context.Context, requesterID uint, name string) (*RoomDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("room name is required")
	}
	if utf8.RuneCountInString(name) > maxRoomNameLen {
		return nil, invalid("room name is too long")
	}
	room := models.Room{Name: name, OwnerID: requesterID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		_, err := addMember(tx, room.ID, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, &room)
}

// Get 返回填充了成员与菜谱摘要的房间。
func (s *RoomService) Get(ctx context.Context, roomID uint) (*RoomDTO, error) {
	room, err := findRoom(s.db.WithContext(ctx), roomID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, room)
}

// ListForUser 返回用户所在的全部房间，新建的在前。
func (s *RoomService) ListForUser(ctx context.Context, userID uint) ([]RoomDTO, error) {
	db := s.db.WithContext(ctx)
	var rooms []models.Room
	err := db.
		Where("id IN (?)", db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", userID)).
		Order("id desc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return s.populateMany(ctx, rooms)
}

// Join 让用户加入房间；已是成员时直接返回成功。
func (s *RoomService) Join(ctx context.Context, requesterID, roomID uint) (*RoomDTO, error) {
	var room *models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if room, err = findRoom(tx, roomID); err != nil {
			return err
		}
		_, err = addMember(tx, roomID, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, room)
}

// AddRecipe 在房间内创建菜谱，并向房间广播 recipe-added。
func (s *RoomService) AddRecipe(ctx context.Context, requesterID, roomID uint, in RecipeInput) (*RecipeDTO, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	recipe := in.model(requesterID)
	recipe.RoomID = &roomID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireMember(tx, roomID, requesterID); err != nil {
			return err
		}
		return tx.Create(&recipe).Error
	})
	if err != nil {
		return nil, err
	}
	dtos, err := recipeDTOs(ctx, s.db, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	dto := &dtos[0]
	s.notifier.Broadcast(roomID, EventRecipeAdded, RecipeAddedEvent{RoomID: roomID, Recipe: dto})
	return dto, nil
}

// RemoveMember 仅允许创建者移除其他成员。
func (s *RoomService) RemoveMember(ctx context.Context, requesterID, roomID, memberID uint) (*RoomDTO, error) {
	var room *models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if room, err = findRoom(tx, roomID); err != nil {
			return err
		}
		if room.OwnerID != requesterID {
			return ErrNotRoomCreator
		}
		if memberID == requesterID {
			return invalid("cannot remove yourself from the room")
		}
		res := tx.Where("room_id = ? AND user_id = ?", roomID, memberID).Delete(&models.RoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMemberNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Evict(roomID, memberID)
	return s.populate(ctx, room)
}

// IsMember 供实时通道校验订阅权限。
func (s *RoomService) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	return isMember(s.db.WithContext(ctx), roomID, userID)
}

func (s *RoomService) populate(ctx context.Context, room *models.Room) (*RoomDTO, error) {
	dtos, err := s.populateMany(ctx, []models.Room{*room})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

type memberRow struct {
	RoomID uint
	ID     uint
	Name   string
	Email  string
}

type roomRecipeRow struct {
	RoomID      uint
	ID          uint
	Title       string
	CreatorName string
}

// populateMany 用两条查询填充一批房间的成员与菜谱，结果顺序与 rooms 一致。
func (s *RoomService) populateMany(ctx context.Context, rooms []models.Room) ([]RoomDTO, error) {
	out := make([]RoomDTO, len(rooms))
	if len(rooms) == 0 {
		return out, nil
	}
	ids := make([]uint, len(rooms))
	index := make(map[uint]int, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
		index[r.ID] = i
		out[i] = RoomDTO{
			ID: r.ID, Name: r.Name, CreatorID: r.OwnerID, CreatedAt: r.CreatedAt,
			Members: make([]MemberDTO, 0), Recipes: make([]RoomRecipeDTO, 0),
		}
	}

	var (
		members []memberRow
		recipes []roomRecipeRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("room_members").
			Select("room_members.room_id, users.id, users.name, users.email").
			Joins("JOIN users ON users.id = room_members.user_id").
			Where("room_members.room_id IN ?", ids).
			Order("room_members.id").
			Scan(&members).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Table("recipes").
			Select("recipes.room_id, recipes.id, recipes.title, COALESCE(users.name, '') AS creator_name").
			Joins("LEFT JOIN users ON users.id = recipes.creator_id").
			Where("recipes.room_id IN ?", ids).
			Order("recipes.id").
			Scan(&recipes).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range members {
		dto := &out[index[m.RoomID]]
		dto.Members = append(dto.Members, MemberDTO{ID: m.ID, Name: m.Name, Email: m.Email})
	}
	for _, r := range recipes {
		dto := &out[index[r.RoomID]]
		dto.Recipes = append(dto.Recipes, RoomRecipeDTO{ID: r.ID, Title: r.Title, CreatorName: r.CreatorName})
	}
	return out, nil
}
