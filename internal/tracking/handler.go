package tracking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 1. 打刻リソース
	r.GET("/events", h.ListEvents)
	r.POST("/events", h.CreateEvent)
	r.PUT("/events/:event_id", h.UpdateEvent)
	r.DELETE("/events/:event_id", h.DeleteEvent)

	// 2. 出勤/退勤トグルと現在状態
	r.POST("/clock", h.Clock)
	r.GET("/status", h.Status)

	// 3. 集計ビュー（アプリの日/週/月画面が叩く）
	r.GET("/views/day", h.DayView)
	r.GET("/views/week", h.WeekView)
	r.GET("/views/month", h.MonthView)
}

// ---------- handlers ----------

// GET /views/day?date=YYYY-MM-DD （省略時は今日）
func (h *Handler) DayView(c *gin.Context) {
	res, err := h.svc.DayView(c.Request.Context(), c.Query("date"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /views/week?date=YYYY-MM-DD （date を含む週）
func (h *Handler) WeekView(c *gin.Context) {
	res, err := h.svc.WeekView(c.Request.Context(), c.Query("date"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /views/month?month=YYYY-MM （省略時は今月）
func (h *Handler) MonthView(c *gin.Context) {
	res, err := h.svc.MonthView(c.Request.Context(), c.Query("month"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /events?from=&to=
func (h *Handler) ListEvents(c *gin.Context) {
	res, err := h.svc.ListEvents(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": res, "total": len(res)})
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/events/"+strconv.FormatInt(res.EventID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "event_id must be an integer"))
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.UpdateEvent(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "event_id must be an integer"))
		return
	}
	if err := h.svc.DeleteEvent(c.Request.Context(), id); err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Clock(c *gin.Context) {
	var req ClockRequest
	// ボディ省略可（メモなしの打刻）
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
			return
		}
	}
	res, err := h.svc.Clock(c.Request.Context(), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Status(c *gin.Context) {
	res, err := h.svc.Status(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
