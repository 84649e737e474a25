package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mergepoint/internal/config"
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

type handler struct {
	points *config.Points
	logger *slog.Logger
}

type insertRequest struct {
	Keys []ir.Object `json:"keys" binding:"required"`
}

type insertResponse struct {
	MergePoint string        `json:"merge_point"`
	Identities []ir.Identity `json:"identities"`
	Inserted   int           `json:"inserted"`
	BatchID    string        `json:"batch_id,omitempty"`
}

type purgeRequest struct {
	Identities []ir.Identity `json:"identities" binding:"required"`
}

// errorBody is the error envelope: {"error": {code, message, keys}}.
type errorBody struct {
	Error    errorDetail   `json:"error"`
	Failures []errorDetail `json:"failures,omitempty"`
}

type errorDetail struct {
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Keys     []ir.Object `json:"keys,omitempty"`
	Sources  []string    `json:"sources,omitempty"`
	Identity string      `json:"identity,omitempty"`
}

const (
	codeBadRequest = "BAD_REQUEST"
	codeNotFound   = "NOT_FOUND"
	codeInternal   = "INTERNAL"

	codeOriginExists = "ORIGIN_EXISTS"
)

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "merge_points": h.points.Names()})
}

// table resolves the :point parameter, writing a 404 when it is unknown.
func (h *handler) table(c *gin.Context) (*merge.Table, bool) {
	t, err := h.points.Lookup(c.Param("point"))
	if err != nil {
		abort(c, http.StatusNotFound, codeNotFound, err.Error())
		return nil, false
	}
	return t, true
}

func (h *handler) insert(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}

	var req insertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, codeBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := t.InsertBatch(c.Request.Context(), req.Keys)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if res.Inserted == 0 {
		status = http.StatusOK
	}
	c.JSON(status, insertResponse{
		MergePoint: t.Name(),
		Identities: res.Identities,
		Inserted:   res.Inserted,
		BatchID:    res.BatchID,
	})
}

func (h *handler) union(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	u, err := t.UnionView(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) records(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	recs, err := t.Records(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []ir.MergeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"merge_point": t.Name(), "records": recs})
}

func (h *handler) get(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	id, err := ir.ParseIdentity(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	rec, err := t.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) reconcile(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	dangling, err := t.Reconcile(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merge_point": t.Name(), "dangling": dangling})
}

func (h *handler) purge(c *gin.Context) {
	t, ok := h.table(c)
	if !ok {
		return
	}
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, codeBadRequest, "invalid request: "+err.Error())
		return
	}
	n, err := t.Purge(c.Request.Context(), req.Identities)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merge_point": t.Name(), "deleted": n})
}

// fail maps an operation error to a response. Merge validation failures are
// 422, identity conflicts and refused purges 409, missing records 404.
// Anything else is a 500.
func (h *handler) fail(c *gin.Context, err error) {
	if failures := merge.Errors(err); len(failures) > 0 {
		status := http.StatusUnprocessableEntity
		if merge.IsIdentityConflict(err) {
			status = http.StatusConflict
		}
		c.AbortWithStatusJSON(status, mergeErrorBody(failures))
		return
	}
	if errors.Is(err, merge.ErrNotFound) {
		abort(c, http.StatusNotFound, codeNotFound, err.Error())
		return
	}
	if errors.Is(err, merge.ErrOriginExists) {
		abort(c, http.StatusConflict, codeOriginExists, err.Error())
		return
	}

	h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	abort(c, http.StatusInternalServerError, codeInternal, err.Error())
}

func mergeErrorBody(failures []*merge.Error) errorBody {
	body := errorBody{Error: errorDetail{
		Code:    string(failures[0].Code),
		Message: failures[0].Error(),
	}}
	for _, me := range failures {
		body.Error.Keys = append(body.Error.Keys, me.Keys...)
	}
	if len(failures) == 1 {
		body.Error.Sources = failures[0].Sources
		if !failures[0].Identity.IsZero() {
			body.Error.Identity = failures[0].Identity.String()
		}
		return body
	}

	body.Error.Message = "merge batch rejected"
	for _, me := range failures {
		d := errorDetail{
			Code:    string(me.Code),
			Message: me.Message,
			Keys:    me.Keys,
			Sources: me.Sources,
		}
		if !me.Identity.IsZero() {
			d.Identity = me.Identity.String()
		}
		body.Failures = append(body.Failures, d)
	}
	return body
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
