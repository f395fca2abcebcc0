package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/app/ui"
	"github.com/dkeye/Classroom/internal/config"
)

// Session is what the router drives; *orch.Orchestrator implements it.
type Session interface {
	Join(ctx context.Context) error
	Leave(ctx context.Context)
	View() orch.View
	Subscribe() (<-chan struct{}, func())

	SendMessage(ctx context.Context, text string)
	CallApply(ctx context.Context)
	CallEnded(ctx context.Context)
	TeacherAcceptApply(ctx context.Context)
	TeacherRejectApply(ctx context.Context)
	AcceptApplyUser(ctx context.Context, userUUID, streamUUID string)
	UpdateHandUpState(ctx context.Context, coVideo, autoCoVideo bool)
	StartTick()
	StopTick()
	ToggleApplyUserList()
}

// UIState is the toast/dialog side of the view.
type UIState interface {
	Snapshot() ui.Snapshot
	RemoveDialog(id string)
}

// ViewResponse is the full render state sent to clients.
type ViewResponse struct {
	orch.View
	UI ui.Snapshot `json:"ui"`
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type handlers struct {
	sess       Session
	ui         UIState
	pushPeriod time.Duration
	// callTimeout bounds each action; actions outlive the HTTP request.
	callTimeout time.Duration
}

func SetupRouter(ctx context.Context, cfg *config.Config, sess Session, uiState UIState) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ClassroomSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{
		sess:        sess,
		ui:          uiState,
		pushPeriod:  time.Second,
		callTimeout: cfg.Timers.DispatchTimeout + 5*time.Second,
	}
	api := r.Group("/api")
	api.GET("/view", h.view)
	api.POST("/join", h.join)
	api.POST("/leave", h.leave)
	api.POST("/messages", h.sendMessage)
	api.POST("/apply", h.action(sess.CallApply))
	api.POST("/call/end", h.action(sess.CallEnded))
	api.POST("/apply/accept", h.action(sess.TeacherAcceptApply))
	api.POST("/apply/reject", h.action(sess.TeacherRejectApply))
	api.POST("/apply/users/:user/accept", h.acceptApplyUser)
	api.PUT("/hands-up", h.updateHandUpState)
	api.POST("/tick/start", h.sync(sess.StartTick))
	api.POST("/tick/stop", h.sync(sess.StopTick))
	api.POST("/apply/users/toggle", h.sync(sess.ToggleApplyUserList))
	api.DELETE("/dialogs/:id", h.removeDialog)
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws view endpoint hit")
		h.handleWS(ctx, c)
	})

	return r
}

func (h *handlers) snapshot() ViewResponse {
	return ViewResponse{View: h.sess.View(), UI: h.ui.Snapshot()}
}

func (h *handlers) view(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// actionContext detaches the call from the request so a client disconnect
// does not abort a half-done room operation.
func (h *handlers) actionContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.callTimeout)
}

func (h *handlers) join(c *gin.Context) {
	ctx, cancel := h.actionContext(c)
	defer cancel()
	if err := h.sess.Join(ctx); err != nil {
		if errors.Is(err, orch.ErrAlreadyJoined) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s := sessions.Default(c)
	s.Set("joined_at", time.Now().Unix())
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *handlers) leave(c *gin.Context) {
	ctx, cancel := h.actionContext(c)
	defer cancel()
	h.sess.Leave(ctx)
	s := sessions.Default(c)
	s.Delete("joined_at")
	_ = s.Save()
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid text"})
		return
	}
	ctx, cancel := h.actionContext(c)
	defer cancel()
	h.sess.SendMessage(ctx, req.Text)
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *handlers) acceptApplyUser(c *gin.Context) {
	var req struct {
		StreamUUID string `json:"streamUuid"`
	}
	_ = c.ShouldBindJSON(&req)
	ctx, cancel := h.actionContext(c)
	defer cancel()
	h.sess.AcceptApplyUser(ctx, c.Param("user"), req.StreamUUID)
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *handlers) updateHandUpState(c *gin.Context) {
	var req struct {
		CoVideo     bool `json:"enableCoVideo"`
		AutoCoVideo bool `json:"enableAutoHandUpCoVideo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx, cancel := h.actionContext(c)
	defer cancel()
	h.sess.UpdateHandUpState(ctx, req.CoVideo, req.AutoCoVideo)
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *handlers) removeDialog(c *gin.Context) {
	h.ui.RemoveDialog(c.Param("id"))
	c.JSON(http.StatusOK, h.snapshot())
}

// action wraps a best-effort session action; failures show up as toasts.
func (h *handlers) action(fn func(ctx context.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.actionContext(c)
		defer cancel()
		fn(ctx)
		c.JSON(http.StatusOK, h.snapshot())
	}
}

func (h *handlers) sync(fn func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		fn()
		c.JSON(http.StatusOK, h.snapshot())
	}
}
