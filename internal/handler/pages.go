package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/testflow-app/testflow-web/internal/domain"
	"github.com/testflow-app/testflow-web/internal/telemetry"
	"github.com/testflow-app/testflow-web/internal/upstream"
)

// PagesHandler serves the marketing pages and the student dashboard.
type PagesHandler struct {
	goals      *upstream.StudyGoalsService
	categories *upstream.CategoriesService
	tracker    telemetry.Tracker
	logger     *zap.Logger
}

// NewPagesHandler creates a new pages handler
func NewPagesHandler(goals *upstream.StudyGoalsService, categories *upstream.CategoriesService, tracker telemetry.Tracker, logger *zap.Logger) *PagesHandler {
	return &PagesHandler{
		goals:      goals,
		categories: categories,
		tracker:    tracker,
		logger:     logger,
	}
}

// Home renders the landing page.
func (h *PagesHandler) Home(c *gin.Context) {
	h.tracker.PageView("/")
	c.HTML(http.StatusOK, "home.tmpl", view(c, "TestFlow", nil))
}

// Features renders the product features page.
func (h *PagesHandler) Features(c *gin.Context) {
	h.tracker.PageView("/features")
	c.HTML(http.StatusOK, "features.tmpl", view(c, "Features", nil))
}

// Pricing renders the pricing page.
func (h *PagesHandler) Pricing(c *gin.Context) {
	h.tracker.PageView("/pricing")
	c.HTML(http.StatusOK, "pricing.tmpl", view(c, "Pricing", nil))
}

type dashboardView struct {
	Goals         []domain.StudyGoal
	GoalsError    string
	Categories    []domain.Category
	CategoryNames map[string]string
	CategoryError string
}

// Dashboard renders the student's own goals next to the category catalog.
// The two fetches run concurrently and fail independently: a broken catalog
// still leaves the goal list usable, and vice versa.
func (h *PagesHandler) Dashboard(c *gin.Context) {
	h.tracker.PageView("/dashboard")
	ctx := c.Request.Context()

	var (
		wg   sync.WaitGroup
		data dashboardView
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		goals, err := h.goals.ListOwn(ctx)
		if err != nil {
			h.logger.Warn("dashboard goals fetch failed", zap.Error(err))
			data.GoalsError = "Your study goals could not be loaded."
			return
		}
		data.Goals = goals
	}()
	go func() {
		defer wg.Done()
		categories, err := h.categories.List(ctx)
		if err != nil {
			h.logger.Warn("dashboard categories fetch failed", zap.Error(err))
			data.CategoryError = "Categories could not be loaded."
			return
		}
		data.Categories = categories
	}()
	wg.Wait()

	data.CategoryNames = make(map[string]string, len(data.Categories))
	for _, category := range data.Categories {
		data.CategoryNames[category.ID] = category.Name
	}

	c.HTML(http.StatusOK, "dashboard.tmpl", view(c, "Dashboard", data))
}
