package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/service/urgency"
)

// ContextOperator is the gin context key holding the authenticated operator.
const ContextOperator = "operator"

// Service is what the handlers need from the emergency department service.
type Service interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error)
	Profile(ctx context.Context, op *urgency.Operator) (*model.Profile, error)
	Patient(ctx context.Context, code string) (*model.Patient, error)
	Patients(ctx context.Context, req model.PageRequest) (model.Page[model.Patient], error)
	Providers(ctx context.Context) ([]model.InsuranceProvider, error)
	Admit(ctx context.Context, op *urgency.Operator, req model.AdmissionRequest) (*model.Admission, error)
	Queue(ctx context.Context) ([]model.Admission, error)
	History(ctx context.Context) ([]model.Admission, error)
	Admission(ctx context.Context, id string) (*model.Admission, error)
	ClaimNext(ctx context.Context, op *urgency.Operator) (*model.Admission, error)
	Attend(ctx context.Context, op *urgency.Operator, req model.AttentionRequest) (*model.AttentionRecord, error)
}

// Handler contains dependencies for all handlers
type Handler struct {
	svc     Service
	started time.Time
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc, started: time.Now()}
}

// RegisterPublicRoutes mounts the routes that need no token.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

// RegisterRoutes mounts the routes that need an authenticated operator.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth/perfil", h.Profile)

	r.GET("/pacientes", h.ListPatients)
	r.GET("/pacientes/:cuil", h.GetPatient)
	r.GET("/obras-sociales", h.ListProviders)

	r.POST("/urgencias", h.Admit)
	r.GET("/ingresos", h.ListAdmissions)
	r.GET("/ingresos/:id", h.GetAdmission)

	r.GET("/cola-atencion", h.Queue)
	r.POST("/cola-atencion/atender", h.ClaimNext)
	r.POST("/atenciones", h.Attend)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func operator(c *gin.Context) *urgency.Operator {
	if v, ok := c.Get(ContextOperator); ok {
		if op, ok := v.(*urgency.Operator); ok {
			return op
		}
	}
	return nil
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, "Cuerpo de la solicitud inválido"))
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.svc.Profile(c.Request.Context(), operator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.svc.Patient(c.Request.Context(), c.Param("cuil"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	var req model.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, "Parámetros de paginación inválidos"))
		return
	}
	page, err := h.svc.Patients(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.svc.Providers(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, providers)
}

func (h *Handler) Admit(c *gin.Context) {
	var req model.AdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, "Cuerpo de la solicitud inválido"))
		return
	}
	adm, err := h.svc.Admit(c.Request.Context(), operator(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adm)
}

func (h *Handler) ListAdmissions(c *gin.Context) {
	list, err := h.svc.History(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAdmission(c *gin.Context) {
	adm, err := h.svc.Admission(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adm)
}

func (h *Handler) Queue(c *gin.Context) {
	queue, err := h.svc.Queue(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// ClaimNext answers 204 when nobody is waiting.
func (h *Handler) ClaimNext(c *gin.Context) {
	adm, err := h.svc.ClaimNext(c.Request.Context(), operator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	if adm == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, adm)
}

func (h *Handler) Attend(c *gin.Context) {
	var req model.AttentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, "Cuerpo de la solicitud inválido"))
		return
	}
	rec, err := h.svc.Attend(c.Request.Context(), operator(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}
