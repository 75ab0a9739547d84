package apifake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/users"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}

	account, err := s.accounts.GetByUsername(req.Username)
	if err != nil || account.Blocked || !users.CheckPasswordHash(req.Password, account.PasswordHash) {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	tokens, err := s.issue(account)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authapi.TokenResponse{
		Access:  tokens.AccessToken,
		Refresh: tokens.RefreshToken,
		User:    account.Summary(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.accounts.GetByUsername(req.Username); err == nil {
		writeDetail(w, http.StatusConflict, "A user with that username already exists.")
		return
	}

	account, err := s.addAccount(&users.Account{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}, req.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, account.Summary())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.holdLock.Lock()
	gate, seen := s.refreshGate, s.refreshSeen
	s.holdLock.Unlock()
	if gate != nil {
		select {
		case seen <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	if s.failRefresh.Load() {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	stored, err := s.refreshes.Consume(req.Refresh, s.Now(), s.refreshTTL)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	account, err := s.accounts.GetByID(stored.UserID)
	if err != nil || account.Blocked {
		writeDetail(w, http.StatusUnauthorized, "User is inactive")
		return
	}

	tokens, err := s.issue(account)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authapi.TokenResponse{Access: tokens.AccessToken, Refresh: tokens.RefreshToken})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	sub, _ := claimsFrom(r).GetSubject()
	account, err := s.accounts.GetByID(sub)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, account.Summary())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	if s.failLogout.Load() {
		writeDetail(w, http.StatusInternalServerError, "logout unavailable")
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Refresh != "" {
		s.refreshes.Delete(req.Refresh)
	}

	// The refresh token is dropped even when the bearer has expired
	if claims, detail := s.verifyBearer(r); detail == "" {
		if jti, _ := claims["jti"].(string); jti != "" {
			exp := s.Now().Add(s.accessTTL)
			if e, err := claims.GetExpirationTime(); err == nil && e != nil {
				exp = e.Time
			}
			s.revoked.Add(jti, exp)
		}
	}
	s.revoked.Cleanup(s.Now().Add(-time.Second))
	w.WriteHeader(http.StatusResetContent)
}

func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	sub, _ := claimsFrom(r).GetSubject()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  sub,
		"posts": []string{},
	})
}
