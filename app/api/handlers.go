package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/i79-incidents/app/artifact"
)

func NewHandler(reader ArtifactReader, version string) *Handler {
	return &Handler{
		reader:  reader,
		version: version,
	}
}

func (r FileReader) Read() (*artifact.Document, []byte, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	doc, err := artifact.Unmarshal(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

func (h *Handler) GetIncidents(c *gin.Context) {
	doc, data, err := h.reader.Read()
	if err != nil {
		h.readError(c, err)
		return
	}

	c.Header("X-Incident-Count", strconv.Itoa(doc.Summary.IncidentCount))
	c.Header("X-Generated-At", doc.Summary.GeneratedAt.Format(time.RFC3339))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) GetSummary(c *gin.Context) {
	doc, _, err := h.reader.Read()
	if err != nil {
		h.readError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc.Summary)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}

	status := http.StatusOK
	if doc, _, err := h.reader.Read(); err == nil {
		health["artifact"] = "ok"
		health["generated_at"] = doc.Summary.GeneratedAt.Format(time.RFC3339)
		health["incidents"] = doc.Summary.IncidentCount
	} else {
		health["artifact"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, health)
}

func (h *Handler) readError(c *gin.Context, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Artifact not published yet"})
		return
	}
	slog.Error("Artifact read error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read artifact"})
}
