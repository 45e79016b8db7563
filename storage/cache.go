package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type backend interface {
	HydrateBoard(ctx context.Context, boardID string) (domain.Board, error)
	ListBoardsForUser(ctx context.Context, userID string) ([]domain.Board, error)
}

// Cache wraps the store with redis-backed caching for the two hot read
// projections: the hydrated board and a user's board list. It is cache-aside
// and fail-open: a missing, broken or unreachable redis degrades every call
// to "no caching", never to a failed read or a blocked write.
type Cache struct {
	*Store
	base         backend
	redis        *redis.Client
	boardTTL     time.Duration
	userBoardTTL time.Duration
	opTimeout    time.Duration
}

// CacheOptions tunes the Cache. Zero values fall back to the defaults:
// 300s for hydrated boards, 600s for user board lists, 250ms per redis op.
type CacheOptions struct {
	BoardTTL     time.Duration
	UserBoardTTL time.Duration
	OpTimeout    time.Duration
}

// NewCache creates a caching wrapper using the provided redis client.
func NewCache(base backend, client *redis.Client, opts CacheOptions) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if opts.BoardTTL <= 0 {
		opts.BoardTTL = 300 * time.Second
	}
	if opts.UserBoardTTL <= 0 {
		opts.UserBoardTTL = 600 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	c := &Cache{
		base:         base,
		redis:        client,
		boardTTL:     opts.BoardTTL,
		userBoardTTL: opts.UserBoardTTL,
		opTimeout:    opts.OpTimeout,
	}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

// FetchBoard returns the hydrated board and whether it was served from cache.
func (c *Cache) FetchBoard(ctx context.Context, boardID string) (domain.Board, bool, error) {
	key := BoardCacheKey(boardID)
	var board domain.Board
	if c.load(ctx, key, &board) {
		return board, true, nil
	}
	board, err := c.base.HydrateBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, false, err
	}
	c.store(ctx, key, board, c.boardTTL)
	return board, false, nil
}

// FetchUserBoards returns the user's board list and whether it was served
// from cache.
func (c *Cache) FetchUserBoards(ctx context.Context, userID string) ([]domain.Board, bool, error) {
	key := UserBoardsCacheKey(userID)
	var boards []domain.Board
	if c.load(ctx, key, &boards) {
		return boards, true, nil
	}
	boards, err := c.base.ListBoardsForUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	c.store(ctx, key, boards, c.userBoardTTL)
	return boards, false, nil
}

// InvalidateBoard deletes the hydrated board projection. Collection keys are
// always deleted whole, never patched.
func (c *Cache) InvalidateBoard(ctx context.Context, boardID string) {
	c.evict(ctx, BoardCacheKey(boardID))
}

// InvalidateUserBoards deletes a user's board-list projection.
func (c *Cache) InvalidateUserBoards(ctx context.Context, userID string) {
	c.evict(ctx, UserBoardsCacheKey(userID))
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	data, err := c.redis.Get(opCtx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// Redis trouble degrades to a miss; drop whatever is there so a
			// half-written value cannot resurface later. evict runs under its
			// own timeout: opCtx is typically already expired here.
			c.evict(ctx, key)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.evict(ctx, key)
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.redis == nil || ttl == 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	_ = c.redis.Set(opCtx, key, data, ttl).Err()
}

func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	_ = c.redis.Del(opCtx, key).Err()
}

// BoardCacheKey names the hydrated board projection for a board.
func BoardCacheKey(boardID string) string {
	return "board_" + boardID
}

// UserBoardsCacheKey names the board-list projection for a user.
func UserBoardsCacheKey(userID string) string {
	return "user_boards_" + userID
}
