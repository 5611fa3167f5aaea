package dataserver

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/forgevtt/forgesync/internal/datastore"
)

type errorResponse struct {
	Error string `json:"error"`
}

type createDirRequest struct {
	Path string `json:"path" binding:"required"`
}

type etagResponse struct {
	Path string `json:"path"`
	Etag string `json:"etag"`
}

// abortStoreError maps datastore sentinels to HTTP statuses.
func abortStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, datastore.ErrExists):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, datastore.ErrInvalidName):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// wildcardPath normalizes gin's catch-all parameter to a store path.
func wildcardPath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func (s *Server) handleBrowse(c *gin.Context) {
	listing, err := s.store.Browse(c.Request.Context(), c.Query("dir"))
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleCreateDir(c *gin.Context) {
	var req createDirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.store.CreateDir(c.Request.Context(), req.Path); err != nil {
		abortStoreError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleEtag(c *gin.Context) {
	p := wildcardPath(c)
	etag, err := s.store.Etag(c.Request.Context(), p)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, etagResponse{Path: p, Etag: etag})
}

func (s *Server) handleDownload(c *gin.Context) {
	p := wildcardPath(c)
	r, err := s.store.Open(c.Request.Context(), p)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, r)
}

func (s *Server) handleUpload(c *gin.Context) {
	p := wildcardPath(c)
	etag, err := s.store.Upload(c.Request.Context(), p, c.Request.Body)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, etagResponse{Path: p, Etag: etag})
}
