package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/service"
	"github.com/GTDGit/digistore/internal/utils"
)

// LibraryHandler exposes purchased products and their downloads.
type LibraryHandler struct {
	ents    *service.EntitlementService
	catalog *service.CatalogService
}

// NewLibraryHandler constructs a LibraryHandler.
func NewLibraryHandler(ents *service.EntitlementService, catalog *service.CatalogService) *LibraryHandler {
	return &LibraryHandler{ents: ents, catalog: catalog}
}

// LibraryEntry pairs an entitlement with its product. Product is nil when
// the product has since been removed from the catalog.
type LibraryEntry struct {
	models.Entitlement
	Remaining int             `json:"remaining"`
	Product   *models.Product `json:"product"`
}

// DownloadView is the answer to a granted download.
type DownloadView struct {
	ProductID     int    `json:"productId"`
	DownloadURL   string `json:"downloadUrl"`
	DownloadCount int    `json:"downloadCount"`
	MaxDownloads  int    `json:"maxDownloads"`
	Remaining     int    `json:"remaining"`
}

// ListLibrary handles GET /v1/library
func (h *LibraryHandler) ListLibrary(c *gin.Context) {
	ents := h.ents.List()
	out := make([]LibraryEntry, 0, len(ents))
	for _, e := range ents {
		entry := LibraryEntry{Entitlement: e, Remaining: e.Remaining()}
		if p, err := h.catalog.Get(e.ProductID); err == nil {
			entry.Product = &p
		}
		out = append(out, entry)
	}
	utils.Success(c, http.StatusOK, "Library retrieved", out)
}

// Download handles POST /v1/library/:productId/download
func (h *LibraryHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "productId")
	if !ok {
		return
	}
	ent, err := h.ents.Download(c.Request.Context(), id)
	utils.Respond(c, http.StatusOK, "Download granted", DownloadView{
		ProductID:     ent.ProductID,
		DownloadURL:   ent.DownloadURL,
		DownloadCount: ent.DownloadCount,
		MaxDownloads:  ent.MaxDownloads,
		Remaining:     ent.Remaining(),
	}, err)
}
