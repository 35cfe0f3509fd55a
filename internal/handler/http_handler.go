package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/devboard/devboard/internal/service"
	"github.com/devboard/devboard/pkg/jwt"
	pkglog "github.com/devboard/devboard/pkg/log"
	"github.com/devboard/devboard/pkg/middleware"
	"github.com/devboard/devboard/pkg/response"
)

// HTTPHandler serves the REST surface: auth, projects, members,
// channels, tasks and presence.
type HTTPHandler struct {
	auth     service.AuthService
	projects service.ProjectService
	authMW   *middleware.AuthMiddleware
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(auth service.AuthService, projects service.ProjectService, authMW *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{auth: auth, projects: projects, authMW: authMW}
}

// RegisterRoutes registers all REST endpoints.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.authMW.RequireAuth(), h.Logout)

	projects := api.Group("/projects", h.authMW.RequireAuth())
	projects.POST("", h.CreateProject)
	projects.GET("", h.ListProjects)
	projects.GET("/:id", h.GetProject)
	projects.GET("/:id/members", h.ListMembers)
	projects.POST("/:id/members", h.AddMember)
	projects.GET("/:id/channels", h.ListChannels)
	projects.POST("/:id/channels", h.CreateChannel)
	projects.GET("/:id/tasks", h.ListTasks)
	projects.POST("/:id/tasks", h.CreateTask)
	projects.GET("/:id/presence", h.Presence)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *HTTPHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, tokens, err := h.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.internalError(c, err, "register failed")
		return
	}

	response.Created(c, gin.H{"user": user, "tokens": tokens})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	user, tokens, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		h.internalError(c, err, "login failed")
		return
	}

	response.Success(c, gin.H{"user": user, "tokens": tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *HTTPHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if isTokenError(err) || errors.Is(err, service.ErrUserNotFound) {
			response.Unauthorized(c, "invalid refresh token")
			return
		}
		h.internalError(c, err, "refresh failed")
		return
	}

	response.Success(c, gin.H{"tokens": tokens})
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	header := c.GetHeader(middleware.AuthHeaderKey)
	token := header[len(middleware.BearerPrefix):]

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		response.Unauthorized(c, "invalid token")
		return
	}
	response.Success(c, gin.H{"loggedOut": true})
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *HTTPHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), middleware.GetUserID(c), req.Name, req.Description)
	if err != nil {
		h.internalError(c, err, "project create failed")
		return
	}
	response.Created(c, project)
}

func (h *HTTPHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListProjects(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.internalError(c, err, "project list failed")
		return
	}
	response.Success(c, projects)
}

func (h *HTTPHandler) GetProject(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		h.projectError(c, err, "project get failed")
		return
	}
	response.Success(c, project)
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *HTTPHandler) AddMember(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	member, err := h.projects.AddMember(c.Request.Context(), middleware.GetUserID(c), projectID, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.projectError(c, err, "member add failed")
		return
	}
	response.Created(c, member)
}

func (h *HTTPHandler) ListMembers(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	members, err := h.projects.ListMembers(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		h.projectError(c, err, "member list failed")
		return
	}
	response.Success(c, members)
}

type createChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *HTTPHandler) CreateChannel(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	channel, err := h.projects.CreateChannel(c.Request.Context(), middleware.GetUserID(c), projectID, req.Name)
	if err != nil {
		h.projectError(c, err, "channel create failed")
		return
	}
	response.Created(c, channel)
}

func (h *HTTPHandler) ListChannels(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	channels, err := h.projects.ListChannels(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		h.projectError(c, err, "channel list failed")
		return
	}
	response.Success(c, channels)
}

type createTaskRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *HTTPHandler) CreateTask(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	task, err := h.projects.CreateTask(c.Request.Context(), middleware.GetUserID(c), projectID, req.Title)
	if err != nil {
		h.projectError(c, err, "task create failed")
		return
	}
	response.Created(c, task)
}

func (h *HTTPHandler) ListTasks(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	tasks, err := h.projects.ListTasks(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		h.projectError(c, err, "task list failed")
		return
	}
	response.Success(c, tasks)
}

func (h *HTTPHandler) Presence(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	rooms, err := h.projects.Presence(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		h.projectError(c, err, "presence failed")
		return
	}
	response.Success(c, gin.H{"rooms": rooms})
}

func (h *HTTPHandler) projectID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid project id")
		return 0, false
	}
	return uint(id), true
}

// projectError maps service errors onto HTTP statuses. Not-found and
// forbidden collapse into one answer so project ids cannot be probed.
func (h *HTTPHandler) projectError(c *gin.Context, err error, msg string) {
	if errors.Is(err, service.ErrForbidden) {
		response.Forbidden(c, "forbidden")
		return
	}
	h.internalError(c, err, msg)
}

func (h *HTTPHandler) internalError(c *gin.Context, err error, msg string) {
	pkglog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
	response.InternalError(c, "internal error")
}

func isTokenError(err error) bool {
	return errors.Is(err, jwt.ErrInvalidToken) ||
		errors.Is(err, jwt.ErrExpiredToken) ||
		errors.Is(err, jwt.ErrRevokedToken) ||
		errors.Is(err, jwt.ErrWrongType)
}
