package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	store       Collections
	clock       clockz.Clock
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, store Collections, clock clockz.Clock) *AuthHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &AuthHandler{
		authService: authService,
		store:       store,
		clock:       clock,
	}
}

// readLogin accepts a JSON body or an OAuth2 password form, where the e-mail
// travels as "username".
func readLogin(w http.ResponseWriter, r *http.Request) (models.LoginRequest, bool) {
	var req models.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return req, false
		}
		req.Email = r.PostForm.Get("username")
		if req.Email == "" {
			req.Email = r.PostForm.Get("email")
		}
		req.Password = r.PostForm.Get("password")
		return req, true
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loginReq, ok := readLogin(w, r)
	if !ok {
		return
	}

	// Validate input
	loginReq.Email = strings.TrimSpace(loginReq.Email)
	if loginReq.Email == "" || loginReq.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.Users.FindUserByEmail(r.Context(), loginReq.Email)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Check if user is active
	if !user.IsActive {
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	}

	// Verify password
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	response, err := h.tokens(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	// Last login is informational; a failure does not block the login.
	if err := h.store.Users.UpdateLastLogin(r.Context(), user.ID.Hex(), h.clock.Now()); err != nil {
		middleware.LoggerFromContext(r.Context()).WithError(err).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, response)
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var registerReq models.RegisterRequest
	if readJSON(w, r, &registerReq) != nil {
		return
	}

	// Validate input
	registerReq.Name = strings.TrimSpace(registerReq.Name)
	registerReq.Email = strings.ToLower(strings.TrimSpace(registerReq.Email))
	if registerReq.Name != "" {
		if err := h.authService.ValidateName(registerReq.Name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Check if email already exists
	if _, err := h.store.Users.FindUserByEmail(r.Context(), registerReq.Email); err == nil {
		http.Error(w, "Email already exists", http.StatusConflict)
		return
	}

	// Hash password
	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	now := h.clock.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         registerReq.Name,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.Users.InsertUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		}
		middleware.LoggerFromContext(r.Context()).WithError(err).Error("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	// Every account starts with the default catalog.
	if err := h.store.Types.InsertTypes(r.Context(), models.DefaultMaintenanceTypes(user.ID.Hex())); err != nil {
		middleware.LoggerFromContext(r.Context()).WithError(err).
			WithField("user_id", user.ID.Hex()).Error("Failed to seed default maintenance types")
	}

	response, err := h.tokens(&user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *AuthHandler) tokens(user *models.User) (*models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, RefreshToken: refreshToken, User: *user}, nil
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.store.Users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListUsers returns every account for the admin screen, without password hashes.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users.ListUsers(r.Context())
	if err != nil {
		storageError(w, r, err, "User not found")
		return
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateProfile updates the current user's name, e-mail or password.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var updateReq struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}
	if readJSON(w, r, &updateReq) != nil {
		return
	}

	// Get current user
	user, err := h.store.Users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	// Update fields if provided
	if updateReq.Name != nil {
		name := strings.TrimSpace(*updateReq.Name)
		if err := h.authService.ValidateName(name); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		user.Name = name
	}
	if updateReq.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*updateReq.Email))
		if err := h.authService.ValidateEmail(email); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Check if email is already taken by another user
		existingUser, err := h.store.Users.FindUserByEmail(r.Context(), email)
		if err == nil && existingUser.ID.Hex() != claims.UserID {
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		}
		user.Email = email
	}
	if updateReq.Password != nil {
		if err := h.authService.ValidatePassword(*updateReq.Password); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash, err := h.authService.HashPassword(*updateReq.Password)
		if err != nil {
			http.Error(w, "Failed to hash password", http.StatusInternalServerError)
			return
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = h.clock.Now()

	if err := h.store.Users.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		storageError(w, r, err, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var passwordReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if readJSON(w, r, &passwordReq) != nil {
		return
	}

	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		http.Error(w, "Current password and new password are required", http.StatusBadRequest)
		return
	}

	// Validate new password
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Get current user
	user, err := h.store.Users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	// Verify current password
	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	// Hash new password
	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user.PasswordHash = newPasswordHash
	user.UpdatedAt = h.clock.Now()
	if err := h.store.Users.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// DeleteAccount removes the current user with every vehicle, log and
// maintenance type they own.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	vehicles, err := h.store.Vehicles.FindVehiclesByOwner(ctx, claims.UserID)
	if err != nil {
		storageError(w, r, err, "User not found")
		return
	}
	for _, v := range vehicles {
		if _, err := h.store.Logs.DeleteLogsByVehicle(ctx, v.ID.Hex()); err != nil {
			storageError(w, r, err, "User not found")
			return
		}
	}
	if _, err := h.store.Vehicles.DeleteVehiclesByOwner(ctx, claims.UserID); err != nil {
		storageError(w, r, err, "User not found")
		return
	}
	if _, err := h.store.Types.DeleteTypesByUser(ctx, claims.UserID); err != nil {
		storageError(w, r, err, "User not found")
		return
	}
	if err := h.store.Users.DeleteUser(ctx, claims.UserID); err != nil {
		storageError(w, r, err, "User not found")
		return
	}

	middleware.LoggerFromContext(ctx).WithField("vehicles", len(vehicles)).Info("Account deleted")
	writeMessage(w, http.StatusOK, "Account deleted")
}
