package controller

import (
	"context"
	"net/http"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/observer"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// JudgeService is the part of the service layer the controller needs.
type JudgeService interface {
	ExecuteWithObserver(ctx context.Context, req model.ExecuteRequest, obs observer.TraceObserver) (model.ExecuteResponse, error)
	Languages() []model.LanguageInfo
}

// JudgeController handles judge requests.
type JudgeController struct {
	svc      JudgeService
	upgrader websocket.Upgrader
}

// NewJudgeController creates a new controller. allowOrigin decides which
// websocket origins are accepted; nil accepts every origin.
func NewJudgeController(svc JudgeService, allowOrigin func(*http.Request) bool) *JudgeController {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	return &JudgeController{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     allowOrigin,
		},
	}
}

// Execute grades one submission and returns {status, logs}.
func (h *JudgeController) Execute(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	resp, err := h.svc.ExecuteWithObserver(c.Request.Context(), req, nil)
	if err != nil {
		if resp.Status != "" {
			c.JSON(appErr.GetCode(err).HTTPStatus(), resp)
			return
		}
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Languages lists the supported languages.
func (h *JudgeController) Languages(c *gin.Context) {
	response.Success(c, h.svc.Languages())
}

// streamFrame is one websocket message sent to the client.
type streamFrame struct {
	Type    string           `json:"type"`
	Line    string           `json:"line,omitempty"`
	Status  string           `json:"status,omitempty"`
	Logs    []string         `json:"logs,omitempty"`
	Code    appErr.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Stream upgrades to a websocket, reads one execute request and streams the
// trace line by line, then the final result. Closing the socket cancels grading.
func (h *JudgeController) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	var req model.ExecuteRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.writeFrame(ctx, conn, streamFrame{Type: "error", Code: appErr.InvalidParams, Message: "Invalid request body"})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	// Reads only surface control frames and the close handshake.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	obs := observer.TraceFunc(func(ctx context.Context, line string) {
		h.writeFrame(ctx, conn, streamFrame{Type: "log", Line: line})
	})
	resp, err := h.svc.ExecuteWithObserver(ctx, req, obs)
	if err != nil && resp.Status == "" {
		code := appErr.GetCode(err)
		h.writeFrame(ctx, conn, streamFrame{Type: "error", Code: code, Message: err.Error()})
	} else {
		h.writeFrame(ctx, conn, streamFrame{Type: "result", Status: string(resp.Status), Logs: resp.Logs})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteTimeout))
}

func (h *JudgeController) writeFrame(ctx context.Context, conn *websocket.Conn, frame streamFrame) {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		logger.Debug(ctx, "websocket write failed", zap.String("type", frame.Type), zap.Error(err))
	}
}
