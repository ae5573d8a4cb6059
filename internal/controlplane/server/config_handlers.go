package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betbot/enginectl/internal/domain"
)

// handleConfigGet fetches the engine's active configuration (new baseline). An unsaved
// draft edit it replaces is echoed back as discarded_draft.
func (s *Server) handleConfigGet(c *gin.Context) {
	res, err := s.sync.Fetch(c.Request.Context())
	if err != nil {
		msg, kind := describe(err)
		c.JSON(httpStatus(err), configReadResponse{Error: msg, Code: kind})
		return
	}
	out := configReadResponse{
		Success:    true,
		Config:     &res.Document.Content,
		Revision:   res.Document.Revision,
		Provenance: res.Document.Provenance,
	}
	if res.DiscardedDraft != nil {
		out.DiscardedDraft = &res.DiscardedDraft.Content
	}
	c.JSON(http.StatusOK, out)
}

// handleConfigWrite submits a full document in one step. The draft only changes if the
// engine accepts it. Without a fetched baseline this is a conflict, never a blind overwrite.
func (s *Server) handleConfigWrite(c *gin.Context) {
	var req configWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, configWriteResponse{Error: "request body must be {\"config\": string}"})
		return
	}
	// 客户端断开不应中途取消已发往引擎的提交；单次调用由 SyncCallTimeout 约束
	doc, err := s.sync.Submit(context.WithoutCancel(c.Request.Context()), *req.Config)
	s.respondSave(c, doc, err)
}

func (s *Server) handleDraftGet(c *gin.Context) {
	snap, ok := s.sync.Snapshot()
	if !ok {
		c.JSON(http.StatusConflict, draftResponse{
			Saving: snap.Saving,
			Error:  "no configuration has been fetched from the engine yet",
			Code:   domain.KindNoBaseline,
		})
		return
	}
	c.JSON(http.StatusOK, draftResponse{
		Success:  true,
		Baseline: &snap.Baseline,
		Draft:    &snap.Draft,
		Dirty:    snap.Dirty(),
		Saving:   snap.Saving,
	})
}

func (s *Server) handleDraftEdit(c *gin.Context) {
	var req configWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, draftResponse{Error: "request body must be {\"config\": string}"})
		return
	}
	if _, err := s.sync.EditDraft(*req.Config); err != nil {
		msg, kind := describe(err)
		c.JSON(httpStatus(err), draftResponse{Error: msg, Code: kind})
		return
	}
	s.handleDraftGet(c)
}

func (s *Server) handleDraftReset(c *gin.Context) {
	if _, err := s.sync.ResetDraft(); err != nil {
		msg, kind := describe(err)
		c.JSON(httpStatus(err), draftResponse{Error: msg, Code: kind})
		return
	}
	s.handleDraftGet(c)
}

func (s *Server) handleDraftSave(c *gin.Context) {
	doc, err := s.sync.SaveConfig(context.WithoutCancel(c.Request.Context()))
	s.respondSave(c, doc, err)
}

func (s *Server) respondSave(c *gin.Context, doc domain.ConfigDocument, err error) {
	if err != nil {
		msg, kind := describe(err)
		c.JSON(httpStatus(err), configWriteResponse{Error: msg, Code: kind})
		return
	}
	c.JSON(http.StatusOK, configWriteResponse{
		Success:  true,
		Message:  "configuration saved",
		Revision: doc.Revision,
	})
}
