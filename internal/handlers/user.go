package handlers

import (
	"errors"
	"net/http"

	"lendtrack/internal/auth"
	dom "lendtrack/internal/domain"
	"lendtrack/internal/dto"
	"lendtrack/internal/logging"
	"lendtrack/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	noUserMsg        = "No matching user found"
	usernameTakenMsg = "This username has already been used, try other username"
)

type UserHandler struct {
	users     *service.UserService
	lifecycle *service.LifecycleService
	log       logging.Logger
}

func NewUserHandler(users *service.UserService, lifecycle *service.LifecycleService, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, lifecycle: lifecycle, log: log}
}

// List godoc
// @Summary      List all users
// @Tags         users
// @Produce      json
// @Success      200  {array}   dto.UserResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /user [get]
func (h *UserHandler) List(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "list users failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponses(list))
}

// ListActive godoc
// @Summary      List active users
// @Tags         users
// @Produce      json
// @Success      200  {array}   dto.UserResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /user/active [get]
func (h *UserHandler) ListActive(c *gin.Context) {
	list, err := h.users.ListActive(c.Request.Context())
	if err != nil {
		h.internalError(c, "list users failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponses(list))
}

// GetByID godoc
// @Summary      Get a user by ID
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  dto.UserResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /user/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	u, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	h.writeUser(c, u, err)
}

// GetByUsername godoc
// @Summary      Get a user by username
// @Tags         users
// @Produce      json
// @Param        userName  path      string  true  "Username"
// @Success      200       {object}  dto.UserResponse
// @Failure      400       {object}  dto.ErrorResponse
// @Failure      500       {object}  dto.ErrorResponse
// @Router       /user/name/{userName} [get]
func (h *UserHandler) GetByUsername(c *gin.Context) {
	u, err := h.users.GetByUsername(c.Request.Context(), c.Param("userName"))
	h.writeUser(c, u, err)
}

// Create godoc
// @Summary      Create a user
// @Description  Same checks as signup, but answers with the user and no token.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      dto.SignupRequest  true  "New account"
// @Success      201   {object}  dto.UserResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /user [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.Create(c.Request.Context(), signupInput(req))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUsernameTaken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": usernameTakenMsg})
		default:
			h.internalError(c, "create user failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, dto.NewUserResponse(u))
}

// Update godoc
// @Summary      Update own profile
// @Description  Only email and address can change.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        id    path      string                 true  "User ID"
// @Param        body  body      dto.UpdateUserRequest  true  "Profile fields"
// @Success      200   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /user/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !h.isSelf(c, id) {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, dom.UserPatch{Email: req.Email, Address: req.Address})
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.writeUser(c, u, err)
}

// Delete godoc
// @Summary      Deactivate own account
// @Description  Marks the account inactive and retires the items its owner still holds. Repeating it succeeds with nothing new retired.
// @Tags         users
// @Produce      json
// @Security     BasicAuth
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  dto.DeactivateResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /user/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !h.isSelf(c, id) {
		return
	}
	ack, err := h.lifecycle.Deactivate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": noUserMsg})
			return
		}
		h.internalError(c, "deactivation failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.DeactivateResponse{
		Message:       ack.Message,
		UserID:        ack.UserID,
		AffectedItems: ack.AffectedItems,
		Retired:       ack.Retired,
	})
}

// isSelf writes a 403 unless the authenticated caller is the user addressed by id.
func (h *UserHandler) isSelf(c *gin.Context, id string) bool {
	if auth.UserIDFromContext(c) != id {
		c.JSON(http.StatusForbidden, gin.H{"error": service.ErrForbidden.Error()})
		return false
	}
	return true
}

func (h *UserHandler) writeUser(c *gin.Context, u dom.User, err error) {
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": noUserMsg})
			return
		}
		h.internalError(c, "load user failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(u))
}

func (h *UserHandler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(c.Request.Context(), msg, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
