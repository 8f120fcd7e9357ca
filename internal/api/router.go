package api

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/output"
	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/LJTian/AINewsDigest/internal/scheduler"
	"github.com/LJTian/AINewsDigest/internal/storage"
	"github.com/gin-gonic/gin"
)

// digest 接口一次最多汇总的文章数
const digestLimit = 200

// Runner 在后台启动一轮采集，scheduler.Scheduler 实现了它；
// 已有采集（包括定时任务）在跑时返回 scheduler.ErrBusy
type Runner interface {
	Trigger() error
}

type Server struct {
	store  *storage.Store
	runner Runner
	now    func() time.Time
}

// NewServer runner 为 nil 时不注册手动采集接口
func NewServer(store *storage.Store, runner Runner) *Server {
	return &Server{store: store, runner: runner, now: time.Now}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/:id", s.getArticle)
		v1.GET("/dates", s.listDates)
		v1.GET("/sources", s.listSources)
		v1.GET("/digest", s.digest)
		if s.runner != nil {
			v1.POST("/collect", s.collect)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func internalError(c *gin.Context, err error) {
	log.Printf("api: %s %s error: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "bad_request",
		"message": msg,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// validDate 只接受 YYYY-MM-DD；空串表示不过滤
func validDate(date string) bool {
	if date == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func (s *Server) listArticles(c *gin.Context) {
	date := c.Query("date")
	if !validDate(date) {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	items, err := s.store.ListArticles(c.Request.Context(), c.Query("source"), date, queryInt(c, "limit", 20))
	if err != nil {
		internalError(c, err)
		return
	}
	writeOK(c, items)
}

func (s *Server) getArticle(c *gin.Context) {
	a, err := s.store.GetArticle(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "article not found",
		})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	writeOK(c, a)
}

func (s *Server) listDates(c *gin.Context) {
	dates, err := s.store.ListPublishedDates(c.Request.Context(), c.Query("source"), queryInt(c, "limit", 31))
	if err != nil {
		internalError(c, err)
		return
	}
	writeOK(c, dates)
}

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources()
	if err != nil {
		internalError(c, err)
		return
	}
	writeOK(c, list)
}

// digest 返回某天文章的 Markdown 汇总，默认前一天（东八区）
func (s *Server) digest(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = s.now().In(extract.LocEast8).AddDate(0, 0, -1).Format("2006-01-02")
	}
	if !validDate(date) {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	items, err := s.store.ListArticles(c.Request.Context(), c.Query("source"), date, digestLimit)
	if err != nil {
		internalError(c, err)
		return
	}

	articles := make([]processor.ProcessedArticle, 0, len(items))
	for _, it := range items {
		articles = append(articles, processor.ProcessedArticle{
			ID:          it.ID,
			Title:       it.Title,
			URL:         it.URL,
			Source:      it.Source,
			Description: it.Description,
			PubDate:     it.PublishedDate,
			PublishedAt: it.PublishedAt,
			RawData:     it.ExtraData,
		})
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(output.Digest(articles, "AI 资讯日报 "+date)))
}

// collect 在后台执行一轮采集，已有采集在跑时返回 409
func (s *Server) collect(c *gin.Context) {
	err := s.runner.Trigger()
	if errors.Is(err, scheduler.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "busy",
			"message": "collect job is running",
		})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    "accepted",
		"message": "collect job started",
	})
}

// BasicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func BasicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
