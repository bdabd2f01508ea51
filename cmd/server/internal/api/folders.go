package api

// folders.go - meeting folder CRUD

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxnotes/flux/cmd/server/internal/store"
)

// HandleListFolders GET /api/v1/folders
func HandleListFolders(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"folders": st.Folders()})
	}
}

// HandleCreateFolder POST /api/v1/folders
func HandleCreateFolder(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
		f, err := st.CreateFolder(body.Name)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, f)
	}
}

// HandleRenameFolder PUT /api/v1/folders/:id
func HandleRenameFolder(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := st.RenameFolder(c.Param("id"), body.Name); err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "renamed"})
	}
}

// HandleDeleteFolder DELETE /api/v1/folders/:id
// Member meetings are unassigned, never deleted.
func HandleDeleteFolder(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.DeleteFolder(c.Param("id")); err != nil {
			notFoundResponse(c, "folder")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
