package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/mimiclab/simlink/internal/presets"
	"github.com/mimiclab/simlink/internal/session"
	"github.com/mimiclab/simlink/pkg/metrics"
)

// registerRoutes mounts the local control surface: session status, a
// request bridge for dashboard commands, the preset store proxy, and
// prometheus metrics.
func registerRoutes(r *gin.Engine, sess *session.Session, store *presets.Client, m *metrics.Metrics) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"state":        sess.State().String(),
			"is_computing": sess.IsComputing(),
		})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")

	// POST /api/commands/:type forwards the JSON body as a command and
	// waits for the backend's reply.
	api.POST("/commands/:type", func(c *gin.Context) {
		var payload map[string]any
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&payload); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		msg := session.NewMessage(c.Param("type"), payload)
		reply, err := sess.Request(c.Request.Context(), msg, 0)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, cnst.ErrRequestTimeout) {
				status = http.StatusGatewayTimeout
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"type":       reply.Type,
			"message_id": reply.MessageID,
			"payload":    reply.Payload,
		})
	})

	// Fire-and-forget send, queued while disconnected.
	api.POST("/send/:type", func(c *gin.Context) {
		var payload map[string]any
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&payload); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		sess.Send(session.NewMessage(c.Param("type"), payload))
		c.JSON(http.StatusAccepted, gin.H{"queued": !sess.IsReady()})
	})

	api.GET("/presets", func(c *gin.Context) {
		all, err := store.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, all)
	})

	api.GET("/presets/:name", func(c *gin.Context) {
		p, err := store.Get(c.Request.Context(), c.Param("name"))
		if err != nil {
			c.JSON(presetStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	api.PUT("/presets/:name", func(c *gin.Context) {
		var p presets.Preset
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p.Name = c.Param("name")
		if err := store.Save(c.Request.Context(), &p); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	api.DELETE("/presets/:name", func(c *gin.Context) {
		if err := store.Delete(c.Request.Context(), c.Param("name")); err != nil {
			c.JSON(presetStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func presetStatus(err error) int {
	if errors.Is(err, presets.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
