package service

import (
	"github.com/gin-gonic/gin"

	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	"github.com/reefs-ai/reefs-backend/internal/tools"
)

// CatalogResponse 工具目录
type CatalogResponse struct {
	Tools      []string              `json:"tools"`
	Categories []tools.CategoryGroup `json:"categories"`
}

// CatalogService 工具目录服务
type CatalogService struct {
	catalog *tools.Catalog
}

// NewCatalogService 创建工具目录服务
func NewCatalogService(catalog *tools.Catalog) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// RegisterRoutes 注册路由
func (s *CatalogService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tools/catalog", s.Catalog)
	r.GET("/tools/catalog/:name", s.Definition)
}

// Catalog 返回全部工具，按类别分组
// @Summary Tool catalog
// @Tags tools
// @Produce json
// @Success 200 {object} CatalogResponse
// @Router /api/v1/tools/catalog [get]
func (s *CatalogService) Catalog(c *gin.Context) {
	response.Success(c, CatalogResponse{
		Tools:      s.catalog.AvailableTools(),
		Categories: s.catalog.ByCategory(),
	})
}

// Definition 单个工具定义
// GET /api/v1/tools/catalog/:name
func (s *CatalogService) Definition(c *gin.Context) {
	def, ok := s.catalog.Definition(c.Param("name"))
	if !ok {
		response.NotFound(c, "tool not found")
		return
	}
	response.Success(c, def)
}
