package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/gin-gonic/gin"
)

// RoomDirectory answers read-only questions about live rooms.
type RoomDirectory interface {
	Rooms(ctx context.Context) ([]core.RoomInfo, error)
	Members(ctx context.Context, room domain.RoomID) ([]domain.Participant, error)
}

type RoomsResponse struct {
	Rooms []core.RoomInfo `json:"rooms"`
}

type MembersResponse struct {
	Room    domain.RoomID        `json:"room"`
	Members []domain.Participant `json:"members"`
}

func Register(r gin.IRoutes, dir RoomDirectory) {
	r.GET("/rooms", handlerRooms(dir))
	r.GET("/rooms/:id/members", handlerMembers(dir))
}

func HandlerHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handlerRooms(dir RoomDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, err := dir.Rooms(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, RoomsResponse{Rooms: rooms})
	}
}

func handlerMembers(dir RoomDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := domain.RoomID(c.Param("id"))
		members, err := dir.Members(c.Request.Context(), room)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if len(members) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, MembersResponse{Room: room, Members: members})
	}
}
