package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/stevemurr/tinybase/schema"
	"github.com/stevemurr/tinybase/store"
)

type createCollectionRequest struct {
	Name   string         `json:"name"`
	Schema *schema.Schema `json:"schema"`
}

func (h *Handler) createCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := readBody(c, &req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	if req.Schema != nil {
		if err := req.Schema.Check(); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	id, err := h.store.CreateCollection(ctx, req.Name, req.Schema)
	if err != nil {
		h.writeError(c, err)
		return
	}
	coll, err := h.store.GetCollection(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if coll == nil {
		h.writeError(c, fmt.Errorf("collection %d: %w", id, store.ErrNotFound))
		return
	}
	writeJSON(c, http.StatusCreated, coll)
}

func (h *Handler) listCollections(c *gin.Context) {
	colls, err := h.store.ListCollections(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if colls == nil {
		colls = []*store.Collection{}
	}
	writeJSON(c, http.StatusOK, colls)
}

func (h *Handler) getCollection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	coll, ok := h.lookupCollection(c, id)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, coll)
}

// updateCollectionRequest keeps the schema raw so an explicit null
// can be told apart from an absent key.
type updateCollectionRequest struct {
	Name   *string         `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

func (req *updateCollectionRequest) update() (store.CollectionUpdate, error) {
	upd := store.CollectionUpdate{Name: req.Name}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return upd, fmt.Errorf("name must not be empty")
	}

	switch raw := bytes.TrimSpace(req.Schema); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		upd.RemoveSchema = true
	default:
		var s schema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return upd, fmt.Errorf("invalid schema: %w", err)
		}
		if err := s.Check(); err != nil {
			return upd, err
		}
		upd.Schema = &s
	}
	return upd, nil
}

func (h *Handler) updateCollection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateCollectionRequest
	if err := readBody(c, &req); err != nil {
		badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	upd, err := req.update()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	coll, err := h.store.UpdateCollection(c.Request.Context(), id, upd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, coll)
}

func (h *Handler) deleteCollection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteCollection(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lookupCollection fetches a collection and writes a 404 when it is absent.
func (h *Handler) lookupCollection(c *gin.Context, id int64) (*store.Collection, bool) {
	coll, err := h.store.GetCollection(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	if coll == nil {
		h.writeError(c, fmt.Errorf("collection %d: %w", id, store.ErrNotFound))
		return nil, false
	}
	return coll, true
}
