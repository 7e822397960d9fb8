package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/config"
	"github.com/vovakirdan/iconchat-server/internal/core"
)

// NewServer builds the admin HTTP server: health, metrics, a registry view,
// and the WebSocket gateway into the same hub as the TCP listener.
func NewServer(hub *core.Hub, gatherer prometheus.Gatherer, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/clients", clientsHandler(hub.Registry()))
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// /ws stays outside gin: its writer refuses to hijack once the upgrade
	// response has been written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg.BufferSize, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.AdminAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

// ClientView is the JSON shape of one registered connection.
type ClientView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Remote string `json:"remote"`
}

func clientsHandler(registry *core.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		members := registry.Snapshot()
		views := make([]ClientView, 0, len(members))
		for _, m := range members {
			views = append(views, ClientView{ID: m.ID, Name: m.Name, Icon: m.Icon, Remote: m.Addr})
		}
		c.JSON(stdhttp.StatusOK, views)
	}
}
