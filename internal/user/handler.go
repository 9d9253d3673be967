package user

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GwennLsk/BackCantineAston/internal/api"
	"github.com/GwennLsk/BackCantineAston/internal/auth"
	"github.com/GwennLsk/BackCantineAston/internal/logger"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// Create godoc
// @Summary      Create a user
// @Description  Creates a user. admin defaults to false, orderKeys to an empty list and solde to 0.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request  body      CreateUserRequest  true  "User payload"
// @Success      200      {object}  User
// @Failure      400      {object}  api.ValidationErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /users [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	u, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusOK, u)
}

// List godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {object}  UsersEnvelope
// @Failure      500  {object}  api.ErrorResponse
// @Router       /users [get]
func (h *Handler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, UsersEnvelope{Users: users})
}

// Get godoc
// @Summary      Fetch a user
// @Description  A malformed id is reported as 404, like an unknown one.
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ObjectID"
// @Success      200  {object}  UserEnvelope
// @Failure      404  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	if !IsValidID(id) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{User: u})
}

// Update godoc
// @Summary      Update a user
// @Description  Partial update. Absent fields are left untouched; an empty body changes nothing.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "User ObjectID"
// @Param        request  body      UpdateUserRequest  false  "Fields to change"
// @Success      200      {object}  UserEnvelope
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /users/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	id := c.Param("id")
	if !IsValidID(id) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		api.RespondBindError(c, err)
		return
	}

	u, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{User: u})
}

// Delete godoc
// @Summary      Delete a user
// @Description  Returns the removed user. A malformed id is reported as 404.
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ObjectID"
// @Success      200  {object}  UserEnvelope
// @Failure      404  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /users/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !IsValidID(id) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
		return
	}

	u, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to delete user")
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{User: u})
}

// AddOrder godoc
// @Summary      Attach an order to a user
// @Description  Adds the order key once; repeating the call is a no-op.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "User ObjectID"
// @Param        request  body      AddOrderRequest  true  "Order key"
// @Success      200      {object}  UserEnvelope
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /users/{id}/orders [post]
func (h *Handler) AddOrder(c *gin.Context) {
	id := c.Param("id")
	if !IsValidID(id) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req AddOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	u, err := h.service.AddOrder(c.Request.Context(), id, req.OrderKey)
	if err != nil {
		respondError(c, err, "Failed to add order")
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{User: u})
}

// Credit godoc
// @Summary      Adjust a user's balance
// @Description  Admin-only. Positive amounts credit, negative amounts debit. The balance never goes below zero.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "User ObjectID"
// @Param        request  body      CreditRequest  true  "Amount in cents"
// @Success      200      {object}  UserEnvelope
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /admin/users/{id}/credit [post]
func (h *Handler) Credit(c *gin.Context) {
	id := c.Param("id")
	if !IsValidID(id) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	u, err := h.service.Credit(c.Request.Context(), id, req.Amount)
	if err != nil {
		respondError(c, err, "Failed to adjust balance")
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{User: u})
}

// Login godoc
// @Summary      Login user
// @Description  Authenticates user by email and password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "User credentials"
// @Success      200      {object}  LoginResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	u, accessToken, refreshToken, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid email or password"})
			return
		}
		respondError(c, err, "Failed to login")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         *u,
	})
}

// RefreshToken godoc
// @Summary      Refresh access token
// @Description  Returns new access token using a valid refresh token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      RefreshRequest  true  "Refresh token payload"
// @Success      200      {object}  RefreshResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "refresh_token is required"})
		return
	}

	accessToken, u, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
			return
		}
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid or expired refresh token"})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: accessToken,
		User:        u,
	})
}

// GetMe godoc
// @Summary      Get current user
// @Description  Returns profile of the authenticated user.
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  User
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	u, err := h.service.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, u)
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
	case errors.Is(err, ErrInvalidID):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid identifier"})
	case errors.Is(err, ErrEmailExists):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Email already registered"})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Insufficient balance"})
	default:
		logger.WithError(err).Error(fallback, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}
