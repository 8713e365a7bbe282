package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"numberrush/services"

	"github.com/gin-gonic/gin"
)

// SnapshotLoader reads stored match snapshots.
type SnapshotLoader interface {
	Load(ctx context.Context, matchID string) (*services.MatchSnapshot, error)
}

type MatchHandler struct {
	matchmaker *services.Matchmaker
	snapshots  SnapshotLoader
}

func NewMatchHandler(matchmaker *services.Matchmaker, snapshots SnapshotLoader) *MatchHandler {
	return &MatchHandler{
		matchmaker: matchmaker,
		snapshots:  snapshots,
	}
}

func (h *MatchHandler) ListMatches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"matches": h.matchmaker.List()})
}

// GetMatch serves the live state of a running match, or the last stored
// snapshot of one that has finished.
func (h *MatchHandler) GetMatch(c *gin.Context) {
	id := c.Param("id")

	if match, ok := h.matchmaker.Get(id); ok {
		c.JSON(http.StatusOK, match.Snapshot())
		return
	}

	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}
	snap, err := h.snapshots.Load(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}
		log.Printf("Error loading snapshot of match %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load match"})
		return
	}

	c.JSON(http.StatusOK, snap)
}
