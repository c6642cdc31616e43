package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type Server struct {
	users  user.Repository
	hasher *PasswordHasher
	tokens *JWTManager
}

func NewServer(users user.Repository, hasher *PasswordHasher, tokens *JWTManager) *Server {
	return &Server{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/auth/register", s.Register)
	r.Post("/auth/login", s.Login)
	r.Get("/auth/me", s.Me)
}

type RegisterRequest struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	Role        permission.Role `json:"role,omitempty"`
	PhoneNumber *string         `json:"phoneNumber,omitempty"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name, email and password are required", nil)
		return
	}
	role := permission.RoleUser
	if req.Role != "" && req.Role != permission.RoleUser {
		if !req.Role.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown role %q", req.Role), nil)
			return
		}
		if _, err := permission.Authorize(ctx, permission.ActionRegisterPrivileged); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		role = req.Role
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		cerr.SetNewJSONError(ctx, cerr.AlreadyExists, "email is already registered", nil)
		return
	} else if !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.Internal, "server error", fmt.Errorf("failed to hash password: %w", err))
		return
	}
	now := time.Now()
	u := &user.User{
		ID:           ulid.Make().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		PhoneNumber:  req.PhoneNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, u.Summary())
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string        `json:"token"`
	User  *user.Summary `json:"user"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "email and password are required", nil)
		return
	}
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid email or password", nil)
			return
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid email or password", nil)
		return
	}
	token, err := s.tokens.Generate(u)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.Internal, "server error", fmt.Errorf("failed to sign token: %w", err))
		return
	}
	cerr.SetJSONResponse(ctx, &LoginResponse{Token: token, User: u.Summary()})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionViewResources)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	u, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u.Summary())
}
