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

// AdminCatalogHandler serves the category and study goal administration pages.
type AdminCatalogHandler struct {
	categories *upstream.CategoriesService
	goals      *upstream.StudyGoalsService
	tracker    telemetry.Tracker
	logger     *zap.Logger
}

// NewAdminCatalogHandler creates a new admin catalog handler
func NewAdminCatalogHandler(categories *upstream.CategoriesService, goals *upstream.StudyGoalsService, tracker telemetry.Tracker, logger *zap.Logger) *AdminCatalogHandler {
	return &AdminCatalogHandler{
		categories: categories,
		goals:      goals,
		tracker:    tracker,
		logger:     logger,
	}
}

type adminCategoriesView struct {
	Categories []domain.Category
	LoadError  string
}

// Categories renders the category table.
func (h *AdminCatalogHandler) Categories(c *gin.Context) {
	h.tracker.PageView("/admin/categories")

	data := adminCategoriesView{}
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin categories fetch failed", zap.Error(err))
		data.LoadError = "Categories could not be loaded."
	} else {
		data.Categories = categories
	}

	c.HTML(http.StatusOK, "admin_categories.tmpl", view(c, "Categories", data))
}

// CreateCategory handles the new-category form post.
func (h *AdminCatalogHandler) CreateCategory(c *gin.Context) {
	input := upstream.CategoryInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		IsActive:    c.PostForm("isActive") == "on",
	}
	if input.Name == "" {
		redirectWithError(c, "/admin/categories", "Category name is required.")
		return
	}

	_, err := h.categories.Create(c.Request.Context(), input)
	h.tracker.FormSubmit("admin_category_create", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/categories", formMessage(err, "The category could not be created."))
		return
	}
	redirectWithNotice(c, "/admin/categories", "Category created.")
}

// UpdateCategory handles the edit-category form post.
func (h *AdminCatalogHandler) UpdateCategory(c *gin.Context) {
	input := upstream.CategoryInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		IsActive:    c.PostForm("isActive") == "on",
	}

	_, err := h.categories.Update(c.Request.Context(), c.Param("id"), input)
	h.tracker.FormSubmit("admin_category_update", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/categories", formMessage(err, "The category could not be updated."))
		return
	}
	redirectWithNotice(c, "/admin/categories", "Category updated.")
}

// DeleteCategory handles the delete-category form post.
func (h *AdminCatalogHandler) DeleteCategory(c *gin.Context) {
	err := h.categories.Delete(c.Request.Context(), c.Param("id"))
	h.tracker.FormSubmit("admin_category_delete", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/categories", formMessage(err, "The category could not be deleted."))
		return
	}
	redirectWithNotice(c, "/admin/categories", "Category deleted.")
}

type adminStudyGoalsView struct {
	Goals         []domain.StudyGoal
	Categories    []domain.Category
	CategoryNames map[string]string
	LoadError     string
}

// StudyGoals renders the study goal table with the category select for the
// create form. Both collections load concurrently and fail independently.
func (h *AdminCatalogHandler) StudyGoals(c *gin.Context) {
	h.tracker.PageView("/admin/study-goals")
	ctx := c.Request.Context()

	data := adminStudyGoalsView{}
	var wg sync.WaitGroup
	var goalsErr, categoriesErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		data.Goals, goalsErr = h.goals.List(ctx)
	}()
	go func() {
		defer wg.Done()
		data.Categories, categoriesErr = h.categories.List(ctx)
	}()
	wg.Wait()

	if goalsErr != nil {
		h.logger.Warn("admin study goals fetch failed", zap.Error(goalsErr))
		data.LoadError = "Study goals could not be loaded."
	}
	if categoriesErr != nil {
		h.logger.Warn("admin study goal categories fetch failed", zap.Error(categoriesErr))
	} else {
		data.CategoryNames = make(map[string]string, len(data.Categories))
		for _, category := range data.Categories {
			data.CategoryNames[category.ID] = category.Name
		}
	}

	c.HTML(http.StatusOK, "admin_study_goals.tmpl", view(c, "Study Goals", data))
}

// CreateStudyGoal handles the new-study-goal form post.
func (h *AdminCatalogHandler) CreateStudyGoal(c *gin.Context) {
	input := upstream.StudyGoalInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		CategoryID:  c.PostForm("categoryId"),
		IsActive:    c.PostForm("isActive") == "on",
	}
	if input.Name == "" {
		redirectWithError(c, "/admin/study-goals", "Study goal name is required.")
		return
	}

	_, err := h.goals.Create(c.Request.Context(), input)
	h.tracker.FormSubmit("admin_study_goal_create", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/study-goals", formMessage(err, "The study goal could not be created."))
		return
	}
	redirectWithNotice(c, "/admin/study-goals", "Study goal created.")
}

// UpdateStudyGoal handles the edit-study-goal form post.
func (h *AdminCatalogHandler) UpdateStudyGoal(c *gin.Context) {
	input := upstream.StudyGoalInput{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		CategoryID:  c.PostForm("categoryId"),
		IsActive:    c.PostForm("isActive") == "on",
	}

	_, err := h.goals.Update(c.Request.Context(), c.Param("id"), input)
	h.tracker.FormSubmit("admin_study_goal_update", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/study-goals", formMessage(err, "The study goal could not be updated."))
		return
	}
	redirectWithNotice(c, "/admin/study-goals", "Study goal updated.")
}

// DeleteStudyGoal handles the delete-study-goal form post.
func (h *AdminCatalogHandler) DeleteStudyGoal(c *gin.Context) {
	err := h.goals.Delete(c.Request.Context(), c.Param("id"))
	h.tracker.FormSubmit("admin_study_goal_delete", err == nil)
	if err != nil {
		redirectWithError(c, "/admin/study-goals", formMessage(err, "The study goal could not be deleted."))
		return
	}
	redirectWithNotice(c, "/admin/study-goals", "Study goal deleted.")
}
