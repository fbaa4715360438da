package handlers

import (
	"errors"
	"net/http"

	"lendtrack/internal/auth"
	"lendtrack/internal/dto"
	"lendtrack/internal/logging"
	"lendtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles signup, signin and federated login. Every success
// answers with the bare token as text/plain.
type AuthHandler struct {
	users *service.UserService
	fed   *service.FederationService
	log   logging.Logger
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(users *service.UserService, fed *service.FederationService, log logging.Logger) *AuthHandler {
	return &AuthHandler{users: users, fed: fed, log: log}
}

// Signup godoc
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      plain
// @Param        body  body      dto.SignupRequest  true  "New account"
// @Success      201   {string}  string  "token"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, token, err := h.users.Signup(c.Request.Context(), signupInput(req))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUsernameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": usernameTakenMsg})
		default:
			h.internalError(c, "signup failed", err)
		}
		return
	}
	c.String(http.StatusCreated, "%s", token)
}

// Signin godoc
// @Summary      Sign in
// @Description  Exchanges Basic credentials (or a still-valid Bearer token) for a token.
// @Tags         auth
// @Produce      plain
// @Security     BasicAuth
// @Success      200  {string}  string  "token"
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /signin [post]
func (h *AuthHandler) Signin(c *gin.Context) {
	c.String(http.StatusOK, "%s", auth.TokenFromContext(c))
}

// OAuth godoc
// @Summary      Sign in with Google
// @Description  Verifies a Google id token; the verified email is the username. The account is created on first login.
// @Tags         auth
// @Accept       json
// @Produce      plain
// @Param        body  body      dto.OAuthRequest  true  "Google id token"
// @Success      200   {string}  string  "token"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /oauth [post]
func (h *AuthHandler) OAuth(c *gin.Context) {
	var req dto.OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token is required"})
		return
	}
	_, token, err := h.fed.Login(c.Request.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFederation), errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			h.internalError(c, "federated login failed", err)
		}
		return
	}
	c.String(http.StatusOK, "%s", token)
}

func (h *AuthHandler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(c.Request.Context(), msg, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func signupInput(req dto.SignupRequest) service.SignupInput {
	return service.SignupInput{
		UserName: req.UserName,
		Password: req.Password,
		Email:    req.Email,
		Address:  req.Address,
	}
}
