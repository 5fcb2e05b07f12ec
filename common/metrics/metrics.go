package metrics

import (
	"net/http"

	"github.com/arl/statsviz"
	"github.com/gin-gonic/gin"
)

// StatsFunc 由上层注入，返回房间数 / 玩家数 / CPU 占用
type StatsFunc func() (rooms int, players int, cpu float64)

// Serve 启动监控 HTTP 服务：/health、/stats、/debug/statsviz/
func Serve(addr string, stats StatsFunc) error {
	srv, err := statsviz.NewServer()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/stats", func(c *gin.Context) {
		rooms, players, cpu := 0, 0, 0.0
		if stats != nil {
			rooms, players, cpu = stats()
		}
		c.JSON(http.StatusOK, gin.H{
			"rooms":   rooms,
			"players": players,
			"cpu":     cpu,
		})
	})
	router.GET("/debug/statsviz/*filepath", func(c *gin.Context) {
		if c.Param("filepath") == "/ws" {
			srv.Ws()(c.Writer, c.Request)
			return
		}
		srv.Index()(c.Writer, c.Request)
	})

	return router.Run(addr)
}
