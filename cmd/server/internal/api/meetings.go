package api

// meetings.go - meeting listing, detail, rename, move, delete and export

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluxnotes/flux/cmd/server/internal/export"
	"github.com/fluxnotes/flux/cmd/server/internal/store"
)

// HandleListMeetings GET /api/v1/meetings
// Optional query: folder=<id> for folder members, folder=none for unfiled.
func HandleListMeetings(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch folder := c.Query("folder"); folder {
		case "":
			c.JSON(http.StatusOK, gin.H{"meetings": st.Summaries()})
		case "none":
			c.JSON(http.StatusOK, gin.H{"meetings": st.UnfiledSummaries()})
		default:
			c.JSON(http.StatusOK, gin.H{"meetings": st.FolderSummaries(folder)})
		}
	}
}

// HandleGetMeeting GET /api/v1/meetings/:id
func HandleGetMeeting(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := st.Meeting(c.Param("id"))
		if err != nil {
			notFoundResponse(c, "meeting")
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// HandleRenameMeeting PUT /api/v1/meetings/:id/title
func HandleRenameMeeting(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
		title := strings.TrimSpace(body.Title)
		if title == "" {
			errorResponse(c, http.StatusBadRequest, "title must not be empty")
			return
		}

		m, err := st.Meeting(c.Param("id"))
		if err != nil {
			notFoundResponse(c, "meeting")
			return
		}
		m.Title = title
		if err := st.UpdateMeeting(m); err != nil {
			errorResponse(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// HandleMoveMeeting PUT /api/v1/meetings/:id/folder
// An empty folder_id unfiles the meeting.
func HandleMoveMeeting(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			FolderID string `json:"folder_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := st.MoveMeeting(c.Param("id"), body.FolderID); err != nil {
			errorResponse(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "moved"})
	}
}

// HandleDeleteMeeting DELETE /api/v1/meetings/:id
func HandleDeleteMeeting(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st.DeleteMeeting(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// HandleExportMeeting GET /api/v1/meetings/:id/export?format=text|rttm
func HandleExportMeeting(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := st.Meeting(c.Param("id"))
		if err != nil {
			notFoundResponse(c, "meeting")
			return
		}

		switch format := c.DefaultQuery("format", "text"); format {
		case "text":
			c.String(http.StatusOK, export.ToPlainText(m))
		case "rttm":
			c.String(http.StatusOK, export.ToRTTM(m))
		default:
			errorResponse(c, http.StatusBadRequest, "invalid format: "+format)
		}
	}
}
