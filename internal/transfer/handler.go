package transfer

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"timetrack-backend/internal/tracking"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/transfer/export", h.Export)
	r.POST("/transfer/import", h.Import)
}

// ---------- handlers ----------

// GET /transfer/export?encoding=utf8|sjis
func (h *Handler) Export(c *gin.Context) {
	res, err := h.svc.Export(c.Request.Context(), c.Query("encoding"))
	if err != nil {
		c.JSON(tracking.ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// POST /transfer/import
// multipart の file フィールド、または text/csv ボディをそのまま受ける。
func (h *Handler) Import(c *gin.Context) {
	body := c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, errorFromErr(tracking.ErrInvalid("file field is required")))
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorFromErr(tracking.ErrInvalid("cannot open uploaded file")))
			return
		}
		defer f.Close()
		body = f
	}

	count, err := h.svc.Import(c.Request.Context(), body)
	if err != nil {
		c.JSON(tracking.ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": count})
}

// ---------- helpers ----------

type errorDTO struct {
	Error struct {
		Code    tracking.Code `json:"code"`
		Message string        `json:"message"`
	} `json:"error"`
}

func errorFromErr(err error) errorDTO {
	var e errorDTO
	e.Error.Code = tracking.CodeInternal
	e.Error.Message = err.Error()
	if api, ok := err.(*tracking.APIError); ok {
		e.Error.Code = api.Code
		e.Error.Message = api.Message
	}
	return e
}
