package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bibliohub/internal/auth"
	"bibliohub/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UnreadLister yields the notifications a user has not seen yet, so a
// freshly connected socket can be caught up. The notification repo
// satisfies it; the dispatcher in that package already points back at
// the hub, so this side stays an interface.
type UnreadLister interface {
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
}

type inboundFrame struct {
	Event string `json:"event"`
	Data  struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	} `json:"data"`
}

// WSHandler authenticates the socket with the same token service as the
// REST API, joins the caller to its private room (and the admin room for
// admins), replays unread notifications, then serves chat frames until
// the peer goes away.
func WSHandler(hub *Hub, tokens auth.TokenService, notifications UnreadLister, chats *ChatRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		conn := NewConn(ws)

		hub.Join(UserRoom(claims.UserID), conn, claims.UserID, claims.Name)
		if claims.IsAdmin() {
			hub.Join(AdminRoom, conn, claims.UserID, claims.Name)
		}
		log.Printf("[ws] user %s connected", claims.UserID)

		// catch the client up on anything it missed while offline
		if pending, err := notifications.ListUnread(c.Request.Context(), claims.UserID); err == nil && len(pending) > 0 {
			_ = conn.WriteJSON(Envelope{Event: EventPendingNotifications, Data: pending})
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var frame inboundFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				continue
			}

			switch frame.Event {
			case "join_chat":
				chatID := strings.TrimSpace(frame.Data.ChatID)
				if chatID == "" {
					continue
				}
				hub.Join(ChatRoom(chatID), conn, claims.UserID, claims.Name)
				if history, err := chats.History(c.Request.Context(), chatID, defaultHistorySize); err == nil {
					for _, msg := range history {
						_ = conn.WriteJSON(Envelope{Event: EventNewMessage, Data: msg})
					}
				}
				hub.Emit(ChatRoom(chatID), EventUserJoin, gin.H{"chat_id": chatID, "user": claims.Name})

			case "leave_chat":
				chatID := strings.TrimSpace(frame.Data.ChatID)
				if chatID == "" {
					continue
				}
				hub.Leave(ChatRoom(chatID), conn)
				hub.Emit(ChatRoom(chatID), EventUserLeave, gin.H{"chat_id": chatID, "user": claims.Name})

			case EventChatMessage:
				chatID := strings.TrimSpace(frame.Data.ChatID)
				text := strings.TrimSpace(frame.Data.Text)
				if chatID == "" || text == "" {
					continue
				}
				msg, err := chats.Save(c.Request.Context(), chatID, claims.UserID, text)
				if err != nil {
					log.Printf("[ws] save chat message: %v", err)
					_ = conn.WriteJSON(Envelope{Event: EventChatError, Data: gin.H{"message": "could not send message"}})
					continue
				}
				hub.Emit(ChatRoom(chatID), EventNewMessage, msg)
			}
		}

		hub.LeaveAll(conn)
		log.Printf("[ws] user %s disconnected", claims.UserID)
	}
}

// HistoryHandler exposes chat history over plain HTTP for clients that
// want to render a room before opening the socket.
func HistoryHandler(chats *ChatRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := strings.TrimSpace(c.Query("room"))
		if room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
			return
		}

		history, err := chats.History(c.Request.Context(), room, defaultHistorySize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
			return
		}
		c.JSON(http.StatusOK, history)
	}
}
