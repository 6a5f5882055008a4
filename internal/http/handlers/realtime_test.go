package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/http/middleware"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/realtime"
)

func TestSSEStreamDeliversUserChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	hub := realtime.NewSSEHub(log)
	h := NewRealtimeHandler(log, hub)

	r := gin.New()
	r.Use(middleware.AttachRequestContext())
	r.GET("/api/sse/stream", h.SSEStream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	userID := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sse/stream", nil)
	req.Header.Set("X-User-Id", userID.String())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("preamble: want=%q got=%q err=%v", ": connected", line, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(userID.String()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(realtime.SSEMessage{Channel: uuid.NewString(), Event: realtime.SSEEventMissionCompleted})
	hub.Broadcast(realtime.SSEMessage{Channel: userID.String(), Event: realtime.SSEEventMissionProgress, Data: map[string]any{"userId": userID}})

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			break
		}
	}
	if got := strings.TrimSpace(strings.TrimPrefix(line, "event: ")); got != string(realtime.SSEEventMissionProgress) {
		t.Fatalf("event: want=%s got=%s", realtime.SSEEventMissionProgress, got)
	}
	if h.Streams() != 1 {
		t.Fatalf("streams: want=1 got=%d", h.Streams())
	}
}

func TestSSEStreamRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	h := NewRealtimeHandler(log, realtime.NewSSEHub(log))

	r := gin.New()
	r.Use(middleware.AttachRequestContext())
	r.GET("/api/sse/stream", h.SSEStream)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=%d got=%d", http.StatusUnauthorized, rec.Code)
	}
}
