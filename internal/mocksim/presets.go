package mocksim

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mimiclab/simlink/internal/presets"
)

// The preset store is in-memory: the mock backend exists for development
// loops, not durability.

func (s *Server) listPresets(c *gin.Context) {
	s.mu.Lock()
	out := make([]presets.Preset, 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPreset(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	p, ok := s.presets[name]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preset not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) savePreset(c *gin.Context) {
	var p presets.Preset
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.Name = c.Param("name")
	p.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.presets[p.Name] = p
	s.mu.Unlock()
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePreset(c *gin.Context) {
	name := c.Param("name")
	s.mu.Lock()
	_, ok := s.presets[name]
	delete(s.presets, name)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preset not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
