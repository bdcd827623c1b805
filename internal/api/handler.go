package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebook/internal/form"
	"recipebook/internal/pdf"
	"recipebook/internal/recipe"
	"recipebook/internal/user"
)

const storeTimeout = 5 * time.Second

// RecipeStore defines the recipe data operations the handlers need.
type RecipeStore interface {
	ListRecipes(ctx context.Context) ([]*recipe.Recipe, error)
	SearchRecipes(ctx context.Context, query, scope string) ([]*recipe.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (*recipe.Recipe, error)
	CreateRecipe(ctx context.Context, p recipe.CreateParams, userID int64) (*recipe.Recipe, error)
	UpdateRecipe(ctx context.Context, id int64, p recipe.CreateParams) (*recipe.Recipe, error)
	DeleteRecipe(ctx context.Context, id int64) (bool, error)
	IsOwner(ctx context.Context, recipeID, userID int64) (bool, error)

	FavoriteIDs(ctx context.Context, userID int64) ([]int64, error)
	AddFavorite(ctx context.Context, recipeID, userID int64) (bool, error)
	RemoveFavorite(ctx context.Context, recipeID, userID int64) error

	ListIngredients(ctx context.Context) ([]*recipe.Ingredient, error)
	CatalogNames(ctx context.Context) (map[string]struct{}, error)
	CreateIngredient(ctx context.Context, name string) (*recipe.Ingredient, error)
	UpdateIngredient(ctx context.Context, id int64, name string) (*recipe.Ingredient, error)
	DeleteIngredient(ctx context.Context, id int64) (bool, error)

	ListTags(ctx context.Context) ([]*recipe.Tag, error)
	CreateTag(ctx context.Context, name string) (*recipe.Tag, error)

	ListComments(ctx context.Context, recipeID int64) ([]*recipe.Comment, error)
	CreateComment(ctx context.Context, recipeID int64, content string, userID int64) (*recipe.Comment, error)
	DeleteComment(ctx context.Context, recipeID, commentID int64) (bool, error)
	IsCommentOwner(ctx context.Context, commentID, userID int64) (bool, error)
	LikedCommentIDs(ctx context.Context, recipeID, userID int64) ([]int64, error)
	AddCommentLike(ctx context.Context, recipeID, commentID, userID int64) (bool, error)
	RemoveCommentLike(ctx context.Context, recipeID, commentID, userID int64) (bool, error)
}

// UserStore defines the account operations the handlers need.
type UserStore interface {
	Register(ctx context.Context, username, password string) (*user.User, error)
	Login(ctx context.Context, username, password string) (string, *user.User, error)
	ByToken(ctx context.Context, token string, touch bool) (*user.User, error)
	DeleteToken(ctx context.Context, token string) error
}

// PresenceStore defines the presence operations the handlers need.
type PresenceStore interface {
	Touch(ctx context.Context, deviceID string, userID *int64, userAgent string) error
	Remove(ctx context.Context, deviceID string) error
	OnlineCount(ctx context.Context, window time.Duration) (int, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Recipes        RecipeStore
	Users          UserStore
	Presence       PresenceStore
	Logger         *zap.Logger
	PresenceWindow time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(recipes RecipeStore, users UserStore, presence PresenceStore, logger *zap.Logger) *Handler {
	return &Handler{
		Recipes:        recipes,
		Users:          users,
		Presence:       presence,
		Logger:         logger,
		PresenceWindow: 300 * time.Second,
	}
}

// RegisterRoutes wires every route onto the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.RequireAuth(), h.Logout)
	r.GET("/auth/me", h.RequireAuth(), h.Me)

	r.GET("/recipes", h.ListRecipes)
	r.POST("/recipes", h.RequireAuth(), h.CreateRecipe)
	r.GET("/recipes/:id", h.GetRecipe)
	r.PUT("/recipes/:id", h.RequireAuth(), h.UpdateRecipe)
	r.DELETE("/recipes/:id", h.RequireAuth(), h.DeleteRecipe)
	r.GET("/recipes/:id/pdf", h.ExportRecipePDF)

	r.GET("/recipes/:id/comments", h.ListComments)
	r.POST("/recipes/:id/comments", h.RequireAuth(), h.CreateComment)
	r.DELETE("/recipes/:id/comments/:commentID", h.RequireAuth(), h.DeleteComment)
	r.GET("/recipes/:id/comments/liked", h.RequireAuth(), h.LikedComments)
	r.PUT("/recipes/:id/comments/:commentID/like", h.RequireAuth(), h.LikeComment)
	r.DELETE("/recipes/:id/comments/:commentID/like", h.RequireAuth(), h.UnlikeComment)

	r.PUT("/recipes/:id/favorite", h.RequireAuth(), h.AddFavorite)
	r.DELETE("/recipes/:id/favorite", h.RequireAuth(), h.RemoveFavorite)
	r.GET("/favorites", h.RequireAuth(), h.ListFavorites)

	r.GET("/ingredients", h.ListIngredients)
	r.POST("/ingredients", h.RequireAuth(), h.CreateIngredient)
	r.PUT("/ingredients/:id", h.RequireAuth(), h.UpdateIngredient)
	r.DELETE("/ingredients/:id", h.RequireAuth(), h.DeleteIngredient)

	r.GET("/tags", h.ListTags)
	r.POST("/tags", h.RequireAuth(), h.CreateTag)

	r.POST("/presence/heartbeat", h.OptionalAuth(), h.Heartbeat)
	r.DELETE("/presence/:deviceID", h.RemovePresence)
	r.GET("/presence/count", h.OnlineCount)
}

// Root reports that the API is up.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Recipe API is running"})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.Users.Register(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			detail(c, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, user.ErrInvalidCredentials) {
			detail(c, http.StatusBadRequest, "Username is required")
			return
		}
		h.serverError(c, "register user", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Login verifies credentials and returns a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	token, u, err := h.Users.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			detail(c, http.StatusUnauthorized, err.Error())
			return
		}
		h.serverError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

// Logout revokes the presented token.
func (h *Handler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Users.DeleteToken(ctx, bearerToken(c)); err != nil {
		h.serverError(c, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

var searchScopes = map[string]bool{"all": true, "name": true, "ingredients": true, "tags": true}

// ListRecipes lists all recipes, or searches when a query is present.
func (h *Handler) ListRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	query := c.Query("query")
	if query == "" {
		recipes, err := h.Recipes.ListRecipes(ctx)
		if err != nil {
			h.serverError(c, "list recipes", err)
			return
		}
		c.JSON(http.StatusOK, recipes)
		return
	}

	scope := form.NormalizeName(c.DefaultQuery("scope", "all"))
	if !searchScopes[scope] {
		detail(c, http.StatusBadRequest, "Invalid scope")
		return
	}
	recipes, err := h.Recipes.SearchRecipes(ctx, query, scope)
	if err != nil {
		h.serverError(c, "search recipes", err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// GetRecipe returns a single recipe.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	r, err := h.Recipes.GetRecipe(ctx, id)
	if err != nil {
		h.serverError(c, "get recipe", err)
		return
	}
	if r == nil {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.JSON(http.StatusOK, r)
}

type recipeRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	PrepTime     string `json:"prep_time"`
	CookTime     string `json:"cook_time"`
	Ingredients  string `json:"ingredients"`
	Tags         string `json:"tags"`
}

// validateRecipe runs the form normalizer and the catalog check against
// the raw request fields. A nil result means errors were already written.
func (h *Handler) validateRecipe(c *gin.Context, req recipeRequest) *recipe.CreateParams {
	res := form.NormalizeAndValidate(form.RecipeInput{
		Title:           req.Title,
		Description:     req.Description,
		Instructions:    req.Instructions,
		PrepTime:        req.PrepTime,
		CookTime:        req.CookTime,
		IngredientsText: req.Ingredients,
		TagsText:        req.Tags,
	})

	if res.OK() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()
		catalog, err := h.Recipes.CatalogNames(ctx)
		if err != nil {
			h.serverError(c, "load ingredient catalog", err)
			return nil
		}
		form.CheckCatalog(&res, catalog)
	}

	if !res.OK() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": res.Errors})
		return nil
	}

	return &recipe.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		Instructions: req.Instructions,
		PrepTime:     res.PrepTime,
		CookTime:     res.CookTime,
		Ingredients:  res.Ingredients,
		Tags:         res.Tags,
	}
}

// CreateRecipe validates the submitted form fields and stores the recipe.
func (h *Handler) CreateRecipe(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := h.validateRecipe(c, req)
	if params == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	r, err := h.Recipes.CreateRecipe(ctx, *params, currentUser(c).ID)
	if err != nil {
		h.recipeStoreError(c, "create recipe", err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// UpdateRecipe validates the submitted form fields and replaces the
// recipe. Only the recipe's author or an admin may update it.
func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.authorizeRecipe(c, id) {
		return
	}

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := h.validateRecipe(c, req)
	if params == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	r, err := h.Recipes.UpdateRecipe(ctx, id, *params)
	if err != nil {
		h.recipeStoreError(c, "update recipe", err)
		return
	}
	if r == nil {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteRecipe removes a recipe. Only the author or an admin may delete.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.authorizeRecipe(c, id) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	found, err := h.Recipes.DeleteRecipe(ctx, id)
	if err != nil {
		h.serverError(c, "delete recipe", err)
		return
	}
	if !found {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportRecipePDF renders the recipe as a downloadable PDF.
func (h *Handler) ExportRecipePDF(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	r, err := h.Recipes.GetRecipe(ctx, id)
	if err != nil {
		h.serverError(c, "get recipe", err)
		return
	}
	if r == nil {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}

	out, err := pdf.Render(r)
	if err != nil {
		h.serverError(c, "render pdf", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=recipe-%d.pdf", r.ID))
	c.Data(http.StatusOK, "application/pdf", out)
}

// ListComments lists a recipe's comments.
func (h *Handler) ListComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	comments, err := h.Recipes.ListComments(ctx, id)
	if err != nil {
		h.serverError(c, "list comments", err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Content string `json:"content"`
}

// CreateComment adds a comment to a recipe.
func (h *Handler) CreateComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || form.NormalizeName(req.Content) == "" {
		detail(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	comment, err := h.Recipes.CreateComment(ctx, id, req.Content, currentUser(c).ID)
	if err != nil {
		h.serverError(c, "create comment", err)
		return
	}
	if comment == nil {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment. Only its author or an admin may
// delete it.
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	u := currentUser(c)
	if !u.IsAdmin {
		owner, err := h.Recipes.IsCommentOwner(ctx, commentID, u.ID)
		if err != nil {
			h.serverError(c, "check comment owner", err)
			return
		}
		if !owner {
			detail(c, http.StatusForbidden, "Not allowed to delete this comment")
			return
		}
	}

	found, err := h.Recipes.DeleteComment(ctx, id, commentID)
	if err != nil {
		h.serverError(c, "delete comment", err)
		return
	}
	if !found {
		detail(c, http.StatusNotFound, "Comment not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// LikedComments returns the ids of the recipe's comments the
// authenticated user has liked.
func (h *Handler) LikedComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	ids, err := h.Recipes.LikedCommentIDs(ctx, id, currentUser(c).ID)
	if err != nil {
		h.serverError(c, "list liked comments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment_ids": ids})
}

// LikeComment likes a comment; liking twice is a no-op.
func (h *Handler) LikeComment(c *gin.Context) {
	h.setCommentLike(c, true)
}

// UnlikeComment removes a like; removing an absent like is a no-op.
func (h *Handler) UnlikeComment(c *gin.Context) {
	h.setCommentLike(c, false)
}

func (h *Handler) setCommentLike(c *gin.Context, liked bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	var found bool
	var err error
	if liked {
		found, err = h.Recipes.AddCommentLike(ctx, id, commentID, currentUser(c).ID)
	} else {
		found, err = h.Recipes.RemoveCommentLike(ctx, id, commentID, currentUser(c).ID)
	}
	if err != nil {
		h.serverError(c, "update comment like", err)
		return
	}
	if !found {
		detail(c, http.StatusNotFound, "Comment not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment_id": commentID})
}

// AddFavorite marks a recipe as a favorite of the authenticated user.
func (h *Handler) AddFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	found, err := h.Recipes.AddFavorite(ctx, id, currentUser(c).ID)
	if err != nil {
		h.serverError(c, "add favorite", err)
		return
	}
	if !found {
		detail(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe_id": id})
}

// RemoveFavorite removes a favorite; removing an absent one is a no-op.
func (h *Handler) RemoveFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Recipes.RemoveFavorite(ctx, id, currentUser(c).ID); err != nil {
		h.serverError(c, "remove favorite", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe_id": id})
}

// ListFavorites returns the authenticated user's favorite recipe ids.
func (h *Handler) ListFavorites(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	ids, err := h.Recipes.FavoriteIDs(ctx, currentUser(c).ID)
	if err != nil {
		h.serverError(c, "list favorites", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe_ids": ids})
}

// ListIngredients lists the ingredient catalog with usage counts.
func (h *Handler) ListIngredients(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	ingredients, err := h.Recipes.ListIngredients(ctx)
	if err != nil {
		h.serverError(c, "list ingredients", err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreateIngredient adds a name to the ingredient catalog.
func (h *Handler) CreateIngredient(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	i, err := h.Recipes.CreateIngredient(ctx, req.Name)
	if err != nil {
		h.catalogError(c, "create ingredient", err)
		return
	}
	c.JSON(http.StatusCreated, i)
}

// UpdateIngredient renames a catalog entry.
func (h *Handler) UpdateIngredient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	i, err := h.Recipes.UpdateIngredient(ctx, id, req.Name)
	if err != nil {
		h.catalogError(c, "update ingredient", err)
		return
	}
	if i == nil {
		detail(c, http.StatusNotFound, "Ingredient not found")
		return
	}
	c.JSON(http.StatusOK, i)
}

// DeleteIngredient removes a catalog entry not referenced by any recipe.
func (h *Handler) DeleteIngredient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	found, err := h.Recipes.DeleteIngredient(ctx, id)
	if err != nil {
		h.catalogError(c, "delete ingredient", err)
		return
	}
	if !found {
		detail(c, http.StatusNotFound, "Ingredient not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTags lists all tags.
func (h *Handler) ListTags(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	tags, err := h.Recipes.ListTags(ctx)
	if err != nil {
		h.serverError(c, "list tags", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// CreateTag adds a tag.
func (h *Handler) CreateTag(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	t, err := h.Recipes.CreateTag(ctx, req.Name)
	if err != nil {
		h.catalogError(c, "create tag", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type heartbeatRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// Heartbeat records that a device is online. Authentication is optional;
// an authenticated heartbeat associates the device with its user.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "device_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	var userID *int64
	if u := currentUser(c); u != nil {
		userID = &u.ID
	}
	if err := h.Presence.Touch(ctx, req.DeviceID, userID, c.Request.UserAgent()); err != nil {
		h.serverError(c, "record heartbeat", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemovePresence drops a device's presence row, typically on page unload.
func (h *Handler) RemovePresence(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Presence.Remove(ctx, c.Param("deviceID")); err != nil {
		h.serverError(c, "remove presence", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OnlineCount reports how many distinct parties are currently online.
func (h *Handler) OnlineCount(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	count, err := h.Presence.OnlineCount(ctx, h.PresenceWindow)
	if err != nil {
		h.serverError(c, "count online devices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// authorizeRecipe enforces that the authenticated user owns the recipe
// or is an admin. Writes the response itself on failure.
func (h *Handler) authorizeRecipe(c *gin.Context, recipeID int64) bool {
	u := currentUser(c)
	if u.IsAdmin {
		return true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	owner, err := h.Recipes.IsOwner(ctx, recipeID, u.ID)
	if err != nil {
		h.serverError(c, "check recipe owner", err)
		return false
	}
	if !owner {
		detail(c, http.StatusForbidden, "Not allowed to modify this recipe")
		return false
	}
	return true
}

// recipeStoreError maps store failures from recipe writes: unknown
// ingredients become the form-level field error, everything else is a
// server error.
func (h *Handler) recipeStoreError(c *gin.Context, op string, err error) {
	var unknown *recipe.UnknownIngredientsError
	if errors.As(err, &unknown) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"ingredients": unknown.Error()}})
		return
	}
	h.serverError(c, op, err)
}

// catalogError maps store validation failures from catalog writes.
func (h *Handler) catalogError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, recipe.ErrIngredientRequired), errors.Is(err, recipe.ErrTagRequired):
		detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, recipe.ErrIngredientExists), errors.Is(err, recipe.ErrIngredientInUse):
		detail(c, http.StatusConflict, err.Error())
	default:
		h.serverError(c, op, err)
	}
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		detail(c, http.StatusRequestTimeout, "Request timed out")
		return
	}
	h.Logger.Error("request failed", zap.String("op", op), zap.Error(err))
	detail(c, http.StatusInternalServerError, "Internal server error")
}

func detail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		detail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
