package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 按 ID 查询不到文章
var ErrNotFound = errors.New("storage: article not found")

// Source 描述一个资讯来源，例如 qbitai / xinzhiyuan
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Article struct {
	ID     string `gorm:"primaryKey;size:40" json:"id"`
	Title  string `gorm:"size:512" json:"title"`
	URL    string `gorm:"size:1024;uniqueIndex" json:"url"`
	Source string `gorm:"size:64;index" json:"source"`
	// 列表展示用简介，processor 已按 rune 截断到约 200 字
	Description string    `gorm:"size:600" json:"description"`
	Markdown    string    `gorm:"type:text" json:"markdown,omitempty"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`
	// 东八区日期 YYYY-MM-DD；无发布日期的文章为空
	PublishedDate string            `gorm:"size:10;index" json:"publishedDate"`
	ExtraData     datatypes.JSONMap `json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

const listCacheTTL = 5 * time.Minute

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

// NewStore 打开数据库并自动迁移；redisAddr 为空时不启用缓存
func NewStore(driver, dsn, redisAddr string) (*Store, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	s.Redis = rdb
	return s, nil
}

// Close 关闭数据库连接与 Redis 客户端
func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureSource 确保某个来源存在
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources 返回全部来源，按 code 排序
func (s *Store) ListSources() ([]Source, error) {
	var list []Source
	err := s.DB.Order("code ASC").Find(&list).Error
	return list, err
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(600)）
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// SaveBatch 保存一批文章，以 URL 为幂等键；已存在时更新标题、简介与正文
func (s *Store) SaveBatch(ctx context.Context, items []processor.ProcessedArticle) error {
	db := s.DB.WithContext(ctx)
	for _, it := range items {
		title := truncateRunesDB(toValidUTF8(it.Title), 512)
		description := truncateRunesDB(toValidUTF8(it.Description), 600)
		markdown := toValidUTF8(it.Markdown)
		a := &Article{
			ID:            it.ID,
			Title:         title,
			URL:           it.URL,
			Source:        it.Source,
			Description:   description,
			Markdown:      markdown,
			PublishedAt:   it.PublishedAt,
			PublishedDate: it.PubDate,
			ExtraData:     datatypes.JSONMap(it.RawData),
		}

		if err := db.Where("url = ?", it.URL).FirstOrCreate(a).Error; err != nil {
			return fmt.Errorf("storage: save %s: %w", it.URL, err)
		}
		updates := map[string]any{
			"title":       title,
			"description": description,
			"markdown":    markdown,
		}
		// 已有日期不被一次取不到日期的抓取覆盖
		if it.PubDate != "" {
			updates["published_at"] = it.PublishedAt
			updates["published_date"] = it.PubDate
		}
		if err := db.Model(a).Updates(updates).Error; err != nil {
			return fmt.Errorf("storage: update %s: %w", it.URL, err)
		}
	}

	// 不做按 key 通配删除，依赖短 TTL 的缓存自然过期
	return nil
}

// ListArticles 按来源与可选日期返回文章列表（不含正文），并使用 Redis 做简单缓存
// source: 来源 code，可为空
// date: 可选，格式 2006-01-02，指定则只返回该日期的数据
func (s *Store) ListArticles(ctx context.Context, source, date string, limit int) ([]Article, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("articles:list:%s:%s:%d", source, date, limit)
	var list []Article
	if s.getCache(ctx, cacheKey, &list) {
		return list, nil
	}

	db := s.DB.WithContext(ctx).Model(&Article{}).Omit("markdown")
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if date != "" {
		db = db.Where("published_date = ?", date)
	}
	if err := db.Order("published_at DESC").Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.setCache(ctx, cacheKey, list)
	}
	return list, nil
}

// GetArticle 按 ID 返回完整文章（含 Markdown 正文）
func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	var a Article
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListPublishedDates 返回有数据的日期列表（倒序），结果缓存 5 分钟
func (s *Store) ListPublishedDates(ctx context.Context, source string, limit int) ([]string, error) {
	if limit <= 0 || limit > 365 {
		limit = 31
	}
	cacheKey := fmt.Sprintf("articles:dates:%s:%d", source, limit)
	var dates []string
	if s.getCache(ctx, cacheKey, &dates) {
		return dates, nil
	}

	db := s.DB.WithContext(ctx).Model(&Article{}).Where("published_date <> ''")
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if err := db.Distinct("published_date").Order("published_date DESC").Limit(limit).Pluck("published_date", &dates).Error; err != nil {
		return nil, err
	}

	if len(dates) > 0 {
		s.setCache(ctx, cacheKey, dates)
	}
	return dates, nil
}

func (s *Store) getCache(ctx context.Context, key string, v any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, v) == nil
}

func (s *Store) setCache(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	if bs, err := json.Marshal(v); err == nil {
		_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
	}
}
