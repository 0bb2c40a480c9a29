package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/stevemurr/tinybase/schema"
	"github.com/stevemurr/tinybase/store"
)

type recordRequest struct {
	Data json.RawMessage `json:"data"`
}

// readDocument reads {"data": ...} from the request body.
func readDocument(c *gin.Context) (any, bool) {
	var req recordRequest
	if err := readBody(c, &req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return nil, false
	}
	if len(req.Data) == 0 {
		badRequest(c, "data is required")
		return nil, false
	}
	doc, err := store.DecodeDocument(req.Data)
	if err != nil {
		badRequest(c, "invalid data: "+err.Error())
		return nil, false
	}
	return doc, true
}

// checkDocument validates doc against the schema of collection id.
func (h *Handler) checkDocument(c *gin.Context, id int64, doc any) bool {
	coll, ok := h.lookupCollection(c, id)
	if !ok {
		return false
	}
	if err := schema.Validate(coll.Schema, doc); err != nil {
		h.writeError(c, err)
		return false
	}
	return true
}

func (h *Handler) createRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, ok := readDocument(c)
	if !ok {
		return
	}
	if !h.checkDocument(c, id, doc) {
		return
	}

	rid, err := h.store.CreateRecord(c.Request.Context(), id, doc)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, &store.Record{ID: rid, CollectionID: id, Data: doc})
}

func (h *Handler) listRecords(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	recs, err := h.store.ListRecords(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	writeJSON(c, http.StatusOK, recs)
}

func (h *Handler) getRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rid, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	rec, err := h.store.GetRecord(c.Request.Context(), id, rid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if rec == nil {
		h.writeError(c, fmt.Errorf("record %d in collection %d: %w", rid, id, store.ErrNotFound))
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (h *Handler) updateRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rid, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	doc, ok := readDocument(c)
	if !ok {
		return
	}
	if !h.checkDocument(c, id, doc) {
		return
	}

	rec, err := h.store.UpdateRecord(c.Request.Context(), id, rid, doc)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rid, ok := pathID(c, "record_id")
	if !ok {
		return
	}
	if err := h.store.DeleteRecord(c.Request.Context(), id, rid); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
