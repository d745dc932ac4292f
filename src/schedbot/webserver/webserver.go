package webserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scrimtime/schedbot/src/schedbot/components/notify"
)

// Status is the ops view of the running engine.
type Status struct {
	Registry notify.Stats       `json:"registry"`
	Poller   notify.PollerStats `json:"poller"`
	Cursors  int                `json:"cursors"` // -1 when the store cannot count
}

// New builds the ops router: open health probe plus a token-guarded status
// endpoint.
func New(token string, status func() Status) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := g.Group("/v1")
	v1.Use(tokenMiddleware(token))
	v1.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status())
	})

	return g
}

// tokenMiddleware checks a static bearer token. An empty configured token
// leaves the endpoint open for local operation.
func tokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "unauthorized"})
			return
		}
		c.Next()
	}
}
