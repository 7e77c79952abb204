package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/digistore/internal/models"
	"github.com/GTDGit/digistore/internal/service"
	"github.com/GTDGit/digistore/internal/utils"
)

// maxUploadBytes bounds multipart product uploads.
const maxUploadBytes = 32 << 20

// CatalogHandler handles product catalog HTTP endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts handles GET /v1/products?category=&search=&sort=
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q models.CatalogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	utils.Success(c, http.StatusOK, "Products retrieved", h.catalog.Browse(q))
}

// GetProduct handles GET /v1/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.Get(id)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product retrieved", p)
}

// CreateProduct handles POST /v1/products. It accepts a JSON draft, or a
// multipart form with the draft JSON in "product" and the file in "file".
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var draft models.ProductDraft
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := bindMultipartDraft(c, &draft); err != nil {
			utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&draft); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	p, err := h.catalog.Add(c.Request.Context(), draft)
	utils.Respond(c, http.StatusCreated, "Product created", p, err)
}

// UpdateProduct handles PUT /v1/products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var upd models.ProductUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	p, err := h.catalog.Update(c.Request.Context(), id, upd)
	utils.Respond(c, http.StatusOK, "Product updated", p, err)
}

// DeleteProduct handles DELETE /v1/products/:id
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.catalog.Remove(c.Request.Context(), id)
	utils.Respond(c, http.StatusOK, "Product deleted", gin.H{"id": id}, err)
}

func bindMultipartDraft(c *gin.Context, draft *models.ProductDraft) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if err := json.Unmarshal([]byte(c.PostForm("product")), draft); err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	draft.Payload, err = io.ReadAll(f)
	if err != nil {
		return err
	}
	draft.PayloadContentType = fh.Header.Get("Content-Type")
	if draft.ProductFileName == "" {
		draft.ProductFileName = fh.Filename
	}
	return nil
}

// paramID parses a positive integer path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}
