package httpapi

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/middleware"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/notify"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/refresh"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	User        kogu.UserProfile `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ctx := kogu.WithClientIP(r.Context(), clientIP(r))
	result, err := s.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.setRefreshCookie(w, result.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(s.opts.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	access, refreshToken, err := s.engine.Refresh(r.Context(), cookie.Value)
	if err != nil {
		s.clearRefreshCookie(w)
		writeEngineError(w, err)
		return
	}

	s.setRefreshCookie(w, refreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Logout works from either credential; the cookie is authoritative
	// since the access token may already be expired.
	if cookie, err := r.Cookie(s.opts.RefreshCookieName); err == nil && cookie.Value != "" {
		if sid, _, decodeErr := refresh.Decode(cookie.Value); decodeErr == nil {
			if logoutErr := s.engine.Logout(r.Context(), sid); logoutErr != nil {
				s.logger.Warn("logout failed", zap.Error(logoutErr))
			}
		}
	} else if token, ok := bearerFromRequest(r); ok {
		if logoutErr := s.engine.LogoutByAccessToken(r.Context(), token); logoutErr != nil {
			s.logger.Warn("logout failed", zap.Error(logoutErr))
		}
	}

	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Unit     string `json:"unit"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ctx := kogu.WithClientIP(r.Context(), clientIP(r))
	result, err := s.engine.Register(ctx, kogu.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Unit:     req.Unit,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.deliverOTP(r, result.Challenge, "verify")
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": result.UserID})
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleRegisterAccept(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := s.engine.ConfirmRegistration(r.Context(), req.Email, req.OTP); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ctx := kogu.WithClientIP(r.Context(), clientIP(r))
	challenge, err := s.engine.ResendVerificationOTP(ctx, req.Email)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.deliverOTP(r, challenge, "verify")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ctx := kogu.WithClientIP(r.Context(), clientIP(r))
	challenge, err := s.engine.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.deliverOTP(r, challenge, "reset")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleForgotPasswordAccept(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	grant, err := s.engine.ConfirmPasswordResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reset_token": grant})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResetToken  string `json:"reset_token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := s.engine.CompletePasswordReset(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	user, err := s.store.GetUserByID(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unauthorized"})
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := s.engine.ChangePassword(r.Context(), res.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeEngineError(w, err)
		return
	}

	// Every session is gone, including the caller's.
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// deliverOTP sends the challenge mail. Throwaway challenges for unknown
// emails are mailed too so responses stay uniform.
func (s *Server) deliverOTP(r *http.Request, challenge kogu.OTPChallenge, purpose string) {
	if challenge.Email == "" || challenge.Code == "" {
		return
	}
	if err := s.mailer.Send(r.Context(), notify.OTPMail(challenge.Email, challenge.Code, purpose)); err != nil {
		s.logger.Error("otp mail delivery failed",
			zap.String("purpose", purpose),
			zap.Error(err),
		)
	}
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.RefreshCookieName,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(s.opts.RefreshCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func bearerFromRequest(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	value := r.Header.Get("Authorization")
	if !strings.HasPrefix(value, prefix) || len(value) == len(prefix) {
		return "", false
	}
	return value[len(prefix):], true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
