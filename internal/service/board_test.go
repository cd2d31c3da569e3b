package service

import (
	"sync"
	"testing"
	"time"

	"recipedia/internal/db/dbtest"
	"recipedia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardNormalizeDate(t *testing.T) {
	s := NewBoardService(nil, nil)
	s.now = func() time.Time { return time.Date(2025, 6, 30, 23, 30, 0, 0, time.FixedZone("X", -5*3600)) }

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "2025-07-01", false},
		{"2025-01-02", "2025-01-02", false},
		{" 2025-01-02 ", "2025-01-02", false},
		{"2025-1-2", "", true},
		{"2025-02-30", "", true},
		{"tomorrow", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := s.normalizeDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoardGet_CreatesLazily(t *testing.T) {
	db := dbtest.Open(t)
	a := newUser(t, db, "alice")
	room, err := NewRoomService(db, nil).Create(ctx, a.ID, "Family")
	require.NoError(t, err)
	boards := NewBoardService(db, nil)

	for i := 0; i < 2; i++ {
		b, err := boards.Get(ctx, room.ID, "2025-05-05")
		require.NoError(t, err)
		assert.Equal(t, "2025-05-05", b.Date)
		assert.Empty(t, b.Dinner)
		assert.NotNil(t, b.Breakfast)
	}
	var n int64
	require.NoError(t, db.Model(&models.MealBoard{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	_, err = boards.Get(ctx, 404, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = boards.Get(ctx, room.ID, "05/05/2025")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBoardAddSuggestion(t *testing.T) {
	db := dbtest.Open(t)
	n := &recordingNotifier{}
	a, b, c := newUser(t, db, "alice"), newUser(t, db, "bob"), newUser(t, db, "carol")
	rooms := NewRoomService(db, nil)
	room, err := rooms.Create(ctx, a.ID, "Family")
	require.NoError(t, err)
	_, err = rooms.Join(ctx, b.ID, room.ID)
	require.NoError(t, err)

	boards := NewBoardService(db, n)
	today := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)
	boards.now = func() time.Time { return today }

	board, err := boards.AddSuggestion(ctx, a.ID, room.ID, "dinner", "Pasta", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-10", board.Date)
	require.Len(t, board.Dinner, 1)
	assert.Equal(t, "alice", board.Dinner[0].UserName)
	assert.Equal(t, "Pasta", board.Dinner[0].Dish)

	// 重复提议保留
	_, err = boards.AddSuggestion(ctx, b.ID, room.ID, "Dinner", "Pasta", "2025-04-10")
	require.NoError(t, err)
	board, err = boards.AddSuggestion(ctx, b.ID, room.ID, "dinner", "Pasta", "2025-04-10")
	require.NoError(t, err)
	require.Len(t, board.Dinner, 3)
	assert.Equal(t, []string{"alice", "bob", "bob"}, []string{board.Dinner[0].UserName, board.Dinner[1].UserName, board.Dinner[2].UserName})
	assert.Empty(t, board.Lunch)

	events := n.all()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, EventSuggestionAdded, e.Name)
		assert.Equal(t, room.ID, e.RoomID)
	}
	last := events[2].Payload.(SuggestionAddedEvent)
	assert.Equal(t, room.ID, last.RoomID)
	assert.Equal(t, board.Dinner[2].ID, last.Suggestion.ID)

	tests := []struct {
		name      string
		requester uint
		roomID    uint
		slot      string
		dish      string
		date      string
		wantErr   error
	}{
		{"bad slot", a.ID, room.ID, "brunch", "Eggs", "", ErrValidation},
		{"empty dish", a.ID, room.ID, "lunch", "  ", "", ErrValidation},
		{"bad date", a.ID, room.ID, "lunch", "Soup", "2025-13-01", ErrValidation},
		{"room missing", a.ID, 404, "lunch", "Soup", "", ErrRoomNotFound},
		{"not a member", c.ID, room.ID, "lunch", "Soup", "", ErrNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := boards.AddSuggestion(ctx, tt.requester, tt.roomID, tt.slot, tt.dish, tt.date)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Len(t, n.all(), 3)
}

func TestBoardAddSuggestion_ConcurrentSingleBoard(t *testing.T) {
	db := dbtest.Open(t)
	a := newUser(t, db, "alice")
	room, err := NewRoomService(db, nil).Create(ctx, a.ID, "Family")
	require.NoError(t, err)
	boards := NewBoardService(db, nil)

	var wg sync.WaitGroup
	for _, slot := range []string{SlotBreakfast, SlotLunch, SlotSnacks, SlotDinner} {
		slot := slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := boards.AddSuggestion(ctx, a.ID, room.ID, slot, "Toast", "2025-01-01")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, db.Model(&models.MealBoard{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	b, err := boards.Get(ctx, room.ID, "2025-01-01")
	require.NoError(t, err)
	for _, list := range [][]SuggestionDTO{b.Breakfast, b.Lunch, b.Snacks, b.Dinner} {
		assert.Len(t, list, 1)
	}
}
